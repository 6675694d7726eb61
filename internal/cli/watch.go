package cli

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/cli/appctx"
	"github.com/lherron/discuss/internal/discussion"
	"github.com/lherron/discuss/internal/thread"
)

var watchCmd = &cobra.Command{
	Use:   "watch <task>...",
	Short: "Follow task discussions",
	Long: `Prints each discussion, then refetches it periodically and prints it
again whenever it changes. Runs until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runWatch),
}

var watchInterval string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchInterval, "interval", "", "Refresh interval (default from config, 5s)")
}

func runWatch(app *appctx.App, cmd *cobra.Command, args []string) error {
	raw := watchInterval
	if raw == "" {
		raw = app.Config.WatchInterval
	}
	interval, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", raw, err)
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	ctx := appctx.Context(cmd)
	registry := discussion.NewRegistry(app.Backend, app.Viewer, app.Logger)

	var mu sync.Mutex
	last := make(map[string]string)
	out := cmd.OutOrStdout()
	show := func(taskID string, view *thread.View) {
		var buf bytes.Buffer
		if err := app.Renderer(&buf).Thread(view, nil); err != nil {
			app.Logger.Printf("watch: render %s: %v", taskID, err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if last[taskID] == buf.String() {
			return
		}
		last[taskID] = buf.String()
		fmt.Fprintf(out, "== %s (%s) ==\n%s", taskID, time.Now().Format("15:04:05"), buf.String())
	}

	for _, taskID := range args {
		s, err := registry.Open(ctx, taskID, nil)
		if err != nil {
			return err
		}
		taskID := taskID
		s.OnChange(func(v *thread.View) { show(taskID, v) })
		show(taskID, s.View())
	}

	var wg sync.WaitGroup
	for _, taskID := range registry.Tasks() {
		s, _ := registry.Get(taskID)
		wg.Add(1)
		go func(taskID string, s *discussion.Session) {
			defer wg.Done()
			_ = s.Watch(ctx, interval, func(err error) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(cmd.ErrOrStderr(), "watch %s: %v\n", taskID, err)
			})
		}(taskID, s)
	}
	wg.Wait()
	return nil
}
