package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
)

var lsCmd = &cobra.Command{
	Use:   "ls <task>",
	Short: "List a task's discussion",
	Long: `Lists comments in chronological order. Replies are shown flat with a
short quote of the comment they answer.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runLs),
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	// Listing works without an actor; ownership markers need one.
	if app.Actor != "" {
		viewer, err := app.Backend.Whoami(ctx)
		if err != nil {
			return err
		}
		app.Viewer = viewer
	}

	s, err := app.OpenSession(ctx, args[0])
	if err != nil {
		return err
	}
	return app.Renderer(cmd.OutOrStdout()).Thread(s.View(), s.CanModify)
}
