package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/discuss/internal/domain"
)

// Execer is satisfied by *sql.DB, *sql.Tx and their sqlx wrappers.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Writer handles writing events to the event log
type Writer struct {
	db Execer
}

// NewWriter creates a new event writer
func NewWriter(db Execer) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log. A nil tx writes outside any
// transaction.
func (w *Writer) LogEvent(tx Execer, event *domain.Event) error {
	query := `
		INSERT INTO event_log (actor_uuid, resource_type, resource_uuid, event_type, etag, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	exec := tx
	if exec == nil {
		exec = w.db
	}
	_, err := exec.Exec(query, event.ActorUUID, event.ResourceType, event.ResourceUUID, event.EventType, event.ETag, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

func (w *Writer) log(tx Execer, actorUUID, resourceType, resourceUUID, eventType string, etag *int64, payload map[string]any) error {
	event := &domain.Event{
		ActorUUID:    &actorUUID,
		ResourceType: resourceType,
		ResourceUUID: &resourceUUID,
		EventType:    eventType,
		ETag:         etag,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		s := string(data)
		event.Payload = &s
	}
	return w.LogEvent(tx, event)
}

// LogActorCreated logs an actor creation event
func (w *Writer) LogActorCreated(tx Execer, actorUUID string, actor *domain.Actor) error {
	return w.log(tx, actorUUID, "actor", actor.UUID, "actor.created", nil, map[string]any{
		"id":   actor.ID,
		"slug": actor.Slug,
		"role": actor.Role,
	})
}

// LogTaskCreated logs a task creation event
func (w *Writer) LogTaskCreated(tx Execer, actorUUID string, task *domain.Task) error {
	return w.log(tx, actorUUID, "task", task.UUID, "task.created", &task.ETag, map[string]any{
		"id":    task.ID,
		"slug":  task.Slug,
		"title": task.Title,
	})
}

// LogCommentCreated logs a comment creation event
func (w *Writer) LogCommentCreated(tx Execer, actorUUID, commentUUID string, comment *domain.Comment) error {
	payload := map[string]any{
		"task_id":    comment.TaskID,
		"comment_id": comment.ID,
	}
	if comment.ParentID != "" {
		payload["parent_id"] = comment.ParentID
	}
	if comment.ClientToken != "" {
		payload["client_token"] = comment.ClientToken
	}
	return w.log(tx, actorUUID, "comment", commentUUID, "comment.created", &comment.ETag, payload)
}

// LogCommentUpdated logs a comment body edit
func (w *Writer) LogCommentUpdated(tx Execer, actorUUID, commentUUID string, comment *domain.Comment, previousBody string) error {
	return w.log(tx, actorUUID, "comment", commentUUID, "comment.updated", &comment.ETag, map[string]any{
		"task_id":       comment.TaskID,
		"comment_id":    comment.ID,
		"previous_body": previousBody,
	})
}

// LogCommentDeleted logs a comment soft-delete event. cascadedFrom is the
// id of the comment whose deletion removed this one, or empty.
func (w *Writer) LogCommentDeleted(tx Execer, actorUUID, commentUUID, commentID, taskID, cascadedFrom string) error {
	payload := map[string]any{
		"task_id":             taskID,
		"comment_id":          commentID,
		"deleted_by_actor_id": actorUUID,
		"soft_delete":         true,
	}
	if cascadedFrom != "" {
		payload["cascaded_from"] = cascadedFrom
	}
	return w.log(tx, actorUUID, "comment", commentUUID, "comment.deleted", nil, payload)
}
