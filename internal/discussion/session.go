package discussion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/thread"
)

// SessionParams wires a task discussion together.
type SessionParams struct {
	TaskID string
	Viewer domain.Viewer
	Store  Store
	// Initial seeds the cache and skips the first List call when non-nil.
	Initial  []domain.Comment
	OnChange func(*thread.View)
	Logger   *log.Logger
	Options  Options
}

// Session is one open task discussion: a coordinator bound to a task and
// a viewer, plus background reconciliation.
type Session struct {
	*Coordinator
}

// NewSession loads the discussion for params.TaskID.
func NewSession(ctx context.Context, params SessionParams) (*Session, error) {
	if params.TaskID == "" {
		return nil, errors.New("task id required")
	}
	if params.Store == nil {
		return nil, errors.New("comment store required")
	}

	initial := params.Initial
	if initial == nil {
		records, err := params.Store.List(ctx, params.TaskID)
		if err != nil {
			return nil, &domain.TransportError{Op: "list", TaskID: params.TaskID, Err: err}
		}
		initial = records
	}

	opts := params.Options
	if params.Logger != nil {
		opts.Logger = params.Logger
	}
	s := &Session{Coordinator: NewCoordinator(params.TaskID, params.Viewer, params.Store, initial, opts)}
	if params.OnChange != nil {
		s.OnChange(params.OnChange)
	}
	return s, nil
}

// Watch refreshes the discussion every interval until ctx is done. Failed
// refreshes are passed to onErr and do not stop the loop.
func (s *Session) Watch(ctx context.Context, interval time.Duration, onErr func(error)) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && onErr != nil && ctx.Err() == nil {
				onErr(err)
			}
		}
	}
}

// Registry keeps one Session per open task so that no two coordinators
// share a task's cache.
type Registry struct {
	mu       sync.Mutex
	store    Store
	viewer   domain.Viewer
	logger   *log.Logger
	sessions map[string]*Session
}

// NewRegistry creates a registry that opens sessions against store as viewer.
func NewRegistry(store Store, viewer domain.Viewer, logger *log.Logger) *Registry {
	return &Registry{
		store:    store,
		viewer:   viewer,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for taskID, creating it on first use.
func (r *Registry) Open(ctx context.Context, taskID string, initial []domain.Comment) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[taskID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	s, err := NewSession(ctx, SessionParams{
		TaskID:  taskID,
		Viewer:  r.viewer,
		Store:   r.store,
		Initial: initial,
		Logger:  r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[taskID]; ok {
		return existing, nil
	}
	r.sessions[taskID] = s
	return s, nil
}

// Get returns the open session for taskID.
func (r *Registry) Get(taskID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[taskID]
	return s, ok
}

// Close discards the session for taskID.
func (r *Registry) Close(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, taskID)
}

// SetViewer changes the acting identity of every open session.
func (r *Registry) SetViewer(v domain.Viewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewer = v
	for _, s := range r.sessions {
		s.SetViewer(v)
	}
}

// Tasks lists the open task ids.
func (r *Registry) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for taskID := range r.sessions {
		out = append(out, taskID)
	}
	sort.Strings(out)
	return out
}
