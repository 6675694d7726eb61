package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
)

var addCmd = &cobra.Command{
	Use:   "add <task> [file|-]",
	Short: "Add a comment to a task",
	Long: `Add a comment to a task's discussion.
Comment text can come from:
  - The -m/--message flag
  - A file path
  - stdin (use '-')

Use --reply-to to answer an existing comment.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: appctx.WithApp(appctx.WithViewer(), runAdd),
}

var (
	addMessage string
	addReplyTo string
)

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVarP(&addMessage, "message", "m", "", "Comment text")
	addCmd.Flags().StringVar(&addReplyTo, "reply-to", "", "Comment ID to reply to")
}

func runAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	source := ""
	if len(args) > 1 {
		source = args[1]
	}
	body, err := readBody(addMessage, source, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := appctx.Context(cmd)
	s, err := app.OpenSession(ctx, args[0])
	if err != nil {
		return err
	}
	s.SetDraft(body)
	if addReplyTo != "" {
		if err := s.ReplyTo(addReplyTo); err != nil {
			return err
		}
	}

	res, err := s.Submit(ctx)
	if err != nil {
		return err
	}
	if res.Ambiguous {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: the server response could not be matched; showing the local copy")
	}

	if done, err := renderValue(app, cmd.OutOrStdout(), res.Comment); done {
		return err
	}
	if res.Comment.ParentID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (reply to %s)\n", res.Comment.CanonicalID(), res.Comment.ParentID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", res.Comment.CanonicalID())
	}
	return nil
}
