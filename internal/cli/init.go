package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
	"github.com/lherron/discuss/internal/db"
	"github.com/lherron/discuss/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize or migrate the discuss database",
	Long: `Init creates the SQLite database if needed, applies pending migrations,
repairs friendly-id counters that fell behind, and optionally seeds an actor.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.Options{}, runInit),
}

var (
	initActorSlug string
	initActorName string
	initActorRole string
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initActorSlug, "actor-slug", "", "Seed an actor with this slug if it does not exist")
	initCmd.Flags().StringVar(&initActorName, "actor-name", "", "Display name for the seeded actor")
	initCmd.Flags().StringVar(&initActorRole, "actor-role", "", "Role for the seeded actor (default employee)")
}

func runInit(app *appctx.App, cmd *cobra.Command, args []string) error {
	if app.Config.Remote() {
		return fmt.Errorf("init works on a local database; unset DISCUSS_DAEMON_URL")
	}
	out := cmd.OutOrStdout()

	database, err := db.Open(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	applied, err := database.MigrateWithInfo()
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, name := range applied {
		fmt.Fprintf(out, "✓ Applied %s\n", name)
	}

	repaired, err := db.RepairDrifts(database, db.Sequences())
	if err != nil {
		return fmt.Errorf("failed to repair id sequences: %w", err)
	}
	for _, d := range repaired {
		fmt.Fprintf(out, "✓ Repaired %s counter (%d -> %d)\n", d.Table, d.Counter, d.MaxID)
	}

	if initActorSlug != "" {
		s := store.New(database)
		if _, err := s.Actors.Resolve(initActorSlug); err == nil {
			fmt.Fprintf(out, "✓ Actor %s already exists\n", initActorSlug)
		} else if errors.Is(err, store.ErrNotFound) {
			actor, err := s.Actors.Create(store.ActorCreateParams{
				Slug:        initActorSlug,
				DisplayName: initActorName,
				Role:        initActorRole,
			})
			if err != nil {
				return fmt.Errorf("failed to seed actor: %w", err)
			}
			fmt.Fprintf(out, "✓ Seeded actor %s (%s)\n", actor.Slug, actor.ID)
		} else {
			return err
		}
	}

	fmt.Fprintf(out, "✓ Database ready at %s\n", app.Config.DBPath)
	return nil
}
