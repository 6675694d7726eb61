// Package discussion coordinates optimistic comment mutations for a task:
// apply locally, call the store, then reconcile or roll back.
package discussion

import (
	"context"

	"github.com/lherron/discuss/internal/domain"
)

// Store is the remote comment store a discussion talks to. Implementations
// normalize their wire format into domain.Comment. Any returned error is
// treated as a transport failure; calls are never retried.
type Store interface {
	List(ctx context.Context, taskID string) ([]domain.Comment, error)
	Add(ctx context.Context, taskID string, c domain.NewComment) (*domain.Comment, error)
	Edit(ctx context.Context, taskID, commentID, body string) (*domain.Comment, error)
	Delete(ctx context.Context, taskID, commentID string) (string, error)
}

// Status is the outcome of a mutation as seen by the cache.
type Status string

const (
	StatusApplied    Status = "applied"
	StatusRolledBack Status = "rolled_back"
	StatusUnchanged  Status = "unchanged"
)

// Result reports what a mutation did to the local collection.
type Result struct {
	Status  Status
	Comment *domain.Comment
	// Removed lists ids dropped by a cascading delete.
	Removed []string
	// Ambiguous is set when the store's response could not be matched and
	// the local record was kept as the final version.
	Ambiguous bool
}

// Composer is the input state of the discussion's editor.
type Composer struct {
	Draft     string `json:"draft"`
	ReplyTo   string `json:"reply_to,omitempty"`
	Editing   string `json:"editing,omitempty"`
	EditDraft string `json:"edit_draft,omitempty"`
}
