package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
)

var rmCmd = &cobra.Command{
	Use:   "rm <task> <comment>",
	Short: "Delete a comment and its replies",
	Long:  `Deletes one of your comments. Replies to it, and replies to those, are removed too.`,
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(appctx.WithViewer(), runRm),
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	s, err := app.OpenSession(ctx, args[0])
	if err != nil {
		return err
	}

	res, err := s.Delete(ctx, args[1])
	if err != nil {
		return err
	}
	if done, err := renderValue(app, cmd.OutOrStdout(), map[string]any{"removed": res.Removed}); done {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", strings.Join(res.Removed, ", "))
	return nil
}
