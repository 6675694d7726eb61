package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "discuss",
	Short: "Threaded comments on tasks",
	Long: `discuss reads and writes task discussions. Comments are flat and
chronological; replies point at their parent. Commands run against the
local SQLite database, or against a discussd daemon when DISCUSS_DAEMON_URL
(or --daemon) is set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides DISCUSS_DB_PATH)")
	rootCmd.PersistentFlags().String("as", "", "Actor to act as (slug or friendly ID)")
	rootCmd.PersistentFlags().String("daemon", "", "discussd base URL (overrides DISCUSS_DAEMON_URL)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, ndjson, yaml")
}
