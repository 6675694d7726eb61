package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
)

var actorCmd = &cobra.Command{
	Use:   "actor",
	Short: "Manage actors",
}

var actorAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Register an actor",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runActorAdd),
}

var (
	actorAddName string
	actorAddRole string
)

func init() {
	rootCmd.AddCommand(actorCmd)
	actorCmd.AddCommand(actorAddCmd)

	actorAddCmd.Flags().StringVar(&actorAddName, "name", "", "Display name")
	actorAddCmd.Flags().StringVar(&actorAddRole, "role", "", "Role: employee, hr, manager, department_head, super_admin, system")
}

func runActorAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	actor, err := app.Backend.CreateActor(appctx.Context(cmd), args[0], actorAddName, actorAddRole)
	if err != nil {
		return fmt.Errorf("failed to create actor: %w", err)
	}
	if done, err := renderValue(app, cmd.OutOrStdout(), actor); done {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", actor.ID, actor.Slug, actor.Role)
	return nil
}
