package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/events"
)

// TaskStore handles task persistence operations.
type TaskStore struct {
	store *Store
}

// TaskCreateParams contains parameters for creating a new task.
type TaskCreateParams struct {
	UUID        string // optional: force specific UUID instead of auto-generating
	Slug        string
	Title       string
	WebhookURLs []string
}

type taskRow struct {
	UUID        string         `db:"uuid"`
	ID          string         `db:"id"`
	Slug        string         `db:"slug"`
	Title       string         `db:"title"`
	WebhookURLs sql.NullString `db:"webhook_urls"`
	ETag        int64          `db:"etag"`
	CreatedAt   string         `db:"created_at"`
}

func (r *taskRow) task() *domain.Task {
	t := &domain.Task{
		UUID:      r.UUID,
		ID:        r.ID,
		Slug:      r.Slug,
		Title:     r.Title,
		ETag:      r.ETag,
		CreatedAt: domain.ParseTimestampOrEpoch(r.CreatedAt),
	}
	if r.WebhookURLs.Valid {
		t.WebhookURLs = &r.WebhookURLs.String
	}
	return t
}

var taskColumns = []string{"uuid", "id", "slug", "title", "webhook_urls", "etag", "created_at"}

// Create creates a new task and logs a task.created event.
func (ts *TaskStore) Create(actorUUID string, params TaskCreateParams) (*domain.Task, error) {
	taskSlug, err := normalizeSlug("task", params.Slug)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = taskSlug
	}
	taskUUID := params.UUID
	if taskUUID == "" {
		taskUUID = uuid.NewString()
	}

	var webhookURLs sql.NullString
	if len(params.WebhookURLs) > 0 {
		data, err := json.Marshal(params.WebhookURLs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode webhook urls: %w", err)
		}
		webhookURLs = sql.NullString{String: string(data), Valid: true}
	}

	var created *domain.Task
	err = ts.store.withTx(func(tx *sqlx.Tx, ew *events.Writer) error {
		query, args, err := sq.Insert("tasks").
			Columns("uuid", "slug", "title", "webhook_urls", "created_by_actor_uuid", "created_at").
			Values(taskUUID, taskSlug, title, webhookURLs, nullString(actorUUID), ts.store.timestamp()).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		var row taskRow
		if err := selectOne(tx, &row, sq.Select(taskColumns...).From("tasks").Where(sq.Eq{"uuid": taskUUID})); err != nil {
			return fmt.Errorf("failed to read task: %w", err)
		}
		created = row.task()

		if err := ew.LogTaskCreated(tx, actorUUID, created); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	return created, err
}

// Resolve finds a task by uuid, friendly id, or slug. A leading "t:" is ignored.
func (ts *TaskStore) Resolve(ref string) (*domain.Task, error) {
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "t:"))
	if ref == "" {
		return nil, fmt.Errorf("task reference is required")
	}
	var row taskRow
	err := selectOne(ts.store.x, &row, sq.Select(taskColumns...).From("tasks").
		Where(sq.Or{sq.Eq{"uuid": ref}, sq.Eq{"id": ref}, sq.Eq{"slug": ref}}))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task %s: %w", ref, err)
	}
	return row.task(), nil
}
