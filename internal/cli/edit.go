package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/render"
)

var editCmd = &cobra.Command{
	Use:   "edit <task> <comment> [file|-]",
	Short: "Edit a comment you wrote",
	Long: `Replace the text of one of your comments. With --dry-run the change is
shown as a unified diff and nothing is sent.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: appctx.WithApp(appctx.WithViewer(), runEdit),
}

var (
	editMessage string
	editDryRun  bool
)

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVarP(&editMessage, "message", "m", "", "New comment text")
	editCmd.Flags().BoolVar(&editDryRun, "dry-run", false, "Show the diff without saving")
}

func runEdit(app *appctx.App, cmd *cobra.Command, args []string) error {
	source := ""
	if len(args) > 2 {
		source = args[2]
	}
	body, err := readBody(editMessage, source, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := appctx.Context(cmd)
	s, err := app.OpenSession(ctx, args[0])
	if err != nil {
		return err
	}
	if err := s.BeginEdit(args[1]); err != nil {
		return err
	}

	if editDryRun {
		current := s.Composer().EditDraft
		s.CancelEdit()
		proposed, err := domain.NormalizeBody(body)
		if err != nil {
			return &domain.ValidationError{Op: "edit", Err: err}
		}
		diff, err := render.BodyDiff(args[1], current, proposed)
		if err != nil {
			return fmt.Errorf("failed to diff: %w", err)
		}
		if diff == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), diff)
		return nil
	}

	s.SetEditDraft(body)
	res, err := s.SubmitEdit(ctx)
	if err != nil {
		return err
	}
	if res.Ambiguous {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: the server response could not be matched; showing the local copy")
	}
	if done, err := renderValue(app, cmd.OutOrStdout(), res.Comment); done {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Edited %s\n", res.Comment.CanonicalID())
	return nil
}
