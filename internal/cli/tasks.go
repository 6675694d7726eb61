package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks that own discussions",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskAdd),
}

var (
	taskAddTitle    string
	taskAddWebhooks string
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd)

	taskAddCmd.Flags().StringVar(&taskAddTitle, "title", "", "Task title (defaults to the slug)")
	taskAddCmd.Flags().StringVar(&taskAddWebhooks, "webhooks", "", "Comma-separated webhook URLs notified on comment changes")
}

func runTaskAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	task, err := app.Backend.CreateTask(appctx.Context(cmd), args[0], taskAddTitle, splitCSV(taskAddWebhooks))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if done, err := renderValue(app, cmd.OutOrStdout(), task); done {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", task.ID, task.Slug, task.Title)
	return nil
}
