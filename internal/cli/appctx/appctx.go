// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, backend selection, and viewer resolution
// to reduce boilerplate across commands.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/discuss/internal/client"
	"github.com/lherron/discuss/internal/config"
	"github.com/lherron/discuss/internal/db"
	"github.com/lherron/discuss/internal/discussion"
	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/render"
	"github.com/lherron/discuss/internal/store"
	"github.com/lherron/discuss/internal/webhooks"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// DB is the opened database (nil when talking to a daemon)
	DB *db.DB

	// Store wraps DB (nil when talking to a daemon)
	Store *store.Store

	// Backend is the comment store commands talk to
	Backend client.Backend

	// Actor is the configured actor reference (slug, friendly id or uuid)
	Actor string

	// Viewer is the resolved acting identity (zero if NeedsViewer is false)
	Viewer domain.Viewer

	// Format is the requested output format
	Format render.Format

	// Logger receives diagnostic output; discarded unless log_level is debug
	Logger *log.Logger
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
}

// Renderer returns a renderer writing to w in the configured format.
func (a *App) Renderer(w io.Writer) *render.Renderer {
	return render.NewRenderer(w, render.Options{Format: a.Format})
}

// OpenSession loads the discussion for a task as the app's viewer.
func (a *App) OpenSession(ctx context.Context, taskID string) (*discussion.Session, error) {
	return discussion.NewSession(ctx, discussion.SessionParams{
		TaskID: taskID,
		Viewer: a.Viewer,
		Store:  a.Backend,
		Logger: a.Logger,
	})
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsBackend opens the database or prepares the daemon client.
	NeedsBackend bool

	// NeedsViewer resolves the acting identity through the backend.
	// Requires NeedsBackend.
	NeedsViewer bool
}

// DefaultOptions returns default options (backend required, no viewer).
func DefaultOptions() Options {
	return Options{NeedsBackend: true}
}

// WithViewer returns options that require both backend and viewer.
func WithViewer() Options {
	return Options{NeedsBackend: true, NeedsViewer: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Context returns the command's context, or Background outside Execute.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	if v := flagValue(cmd, "db"); v != "" {
		cfg.DBPath = v
	}
	if v := flagValue(cmd, "daemon"); v != "" {
		cfg.DaemonURL = v
	}
	if v := flagValue(cmd, "output"); v != "" {
		cfg.Output = v
	}
	app.Actor = flagValue(cmd, "as")
	if app.Actor == "" {
		app.Actor = cfg.GetActorID()
	}

	app.Format, err = render.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}

	app.Logger = log.New(io.Discard, "", 0)
	if strings.EqualFold(cfg.LogLevel, "debug") {
		app.Logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}

	if !opts.NeedsBackend {
		return app, nil
	}

	if cfg.Remote() {
		app.Backend = client.NewHTTP(cfg.DaemonURL, cfg.Token, app.Actor)
	} else {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.RequiresMigrationError(); err != nil {
			database.Close()
			return nil, err
		}
		app.DB = database
		app.Store = store.New(database)
		// Short-lived commands deliver webhooks before exiting.
		app.Store.SetNotifier(func(p webhooks.Payload) { webhooks.Dispatch(database, p) })
		app.Backend = client.NewLocal(app.Store, app.Actor)
	}

	if opts.NeedsViewer {
		viewer, err := app.Backend.Whoami(Context(cmd))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to resolve actor: %w", err)
		}
		app.Viewer = viewer
	}

	return app, nil
}
