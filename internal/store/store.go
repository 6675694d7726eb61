// Package store provides a persistence layer that abstracts database operations,
// automatically handling etag management, timestamps, and event logging.
package store

import (
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/lherron/discuss/internal/db"
	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/events"
	"github.com/lherron/discuss/internal/slug"
	"github.com/lherron/discuss/internal/webhooks"
)

var (
	// ErrNotFound is returned when a referenced actor, task, or comment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the acting actor may not modify the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned for malformed slugs, roles, and similar input.
	ErrInvalidInput = errors.New("invalid input")
)

// normalizeSlug rejects slugs that would shadow generated ids.
func normalizeSlug(kind, raw string) (string, error) {
	s, err := slug.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s %v", ErrInvalidInput, kind, err)
	}
	if slug.IsFriendlyID(s) {
		return "", fmt.Errorf("%w: %s slug %q looks like a generated id", ErrInvalidInput, kind, s)
	}
	return s, nil
}

// timeFormat is fixed width so stored timestamps order lexically.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db  *db.DB
	x   *sqlx.DB
	now func() time.Time

	notify func(webhooks.Payload)

	Actors   *ActorStore
	Tasks    *TaskStore
	Comments *CommentStore
}

// New creates a new Store wrapping the given database connection. Comment
// changes are announced to the task's webhooks in the background.
func New(database *db.DB) *Store {
	s := &Store{
		db:  database,
		x:   sqlx.NewDb(database.DB, "sqlite3"),
		now: func() time.Time { return time.Now().UTC() },
	}
	s.notify = func(p webhooks.Payload) { go webhooks.Dispatch(database, p) }
	s.Actors = &ActorStore{store: s}
	s.Tasks = &TaskStore{store: s}
	s.Comments = &CommentStore{store: s}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// SetNotifier replaces webhook dispatch. A nil fn disables notifications.
func (s *Store) SetNotifier(fn func(webhooks.Payload)) {
	if fn == nil {
		fn = func(webhooks.Payload) {}
	}
	s.notify = fn
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeFormat)
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(fn func(tx *sqlx.Tx, ew *events.Writer) error) error {
	tx, err := s.x.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ew := events.NewWriter(s.x)
	if err := fn(tx, ew); err != nil {
		return err
	}

	return tx.Commit()
}

// checkETag verifies etag matches if ifMatch > 0, returns ETagMismatchError on mismatch.
func checkETag(currentETag, ifMatch int64) error {
	if ifMatch > 0 {
		return domain.CheckETag(ifMatch, currentETag)
	}
	return nil
}

// selectOne runs a squirrel query expected to return one row into dest.
func selectOne(q sqlx.Queryer, dest any, b sq.SelectBuilder) error {
	query, args, err := b.Limit(1).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return sqlx.Get(q, dest, query, args...)
}
