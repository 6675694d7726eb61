package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the current actor",
	Long:  `Displays the identity comments are attributed to, as resolved by the backend.`,
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.WithViewer(), runWhoami),
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(app *appctx.App, cmd *cobra.Command, args []string) error {
	backend := app.Config.DBPath
	if app.Config.Remote() {
		backend = app.Config.DaemonURL
	}

	done, err := renderValue(app, cmd.OutOrStdout(), map[string]any{
		"viewer":  app.Viewer,
		"backend": backend,
	})
	if done {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Actor:   %s (%s)\n", app.Viewer.Name, app.Viewer.ID)
	fmt.Fprintf(out, "Role:    %s\n", app.Viewer.Role)
	fmt.Fprintf(out, "Backend: %s\n", backend)
	return nil
}
