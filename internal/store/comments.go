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
	"github.com/lherron/discuss/internal/webhooks"
)

// CommentStore handles comment persistence operations.
type CommentStore struct {
	store *Store
}

// CommentCreateParams contains parameters for creating a comment.
type CommentCreateParams struct {
	TaskUUID    string
	Body        string
	ParentRef   string // id or uuid of the comment being replied to
	ClientToken string
	Attachments []json.RawMessage
}

// DeleteResult lists every comment removed by a delete in chronological order.
type DeleteResult struct {
	CommentID string
	Removed   []string
}

type commentRow struct {
	UUID        string         `db:"uuid"`
	ID          string         `db:"id"`
	TaskUUID    string         `db:"task_uuid"`
	TaskID      string         `db:"task_id"`
	ActorUUID   string         `db:"actor_uuid"`
	ActorID     string         `db:"actor_id"`
	ActorSlug   string         `db:"actor_slug"`
	ActorName   sql.NullString `db:"actor_name"`
	ActorRole   string         `db:"actor_role"`
	ActorAvatar sql.NullString `db:"actor_avatar"`
	ParentUUID  sql.NullString `db:"parent_uuid"`
	ParentID    sql.NullString `db:"parent_id"`
	Body        string         `db:"body"`
	ClientToken sql.NullString `db:"client_token"`
	Attachments sql.NullString `db:"attachments"`
	ETag        int64          `db:"etag"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   sql.NullString `db:"updated_at"`
	EditedAt    sql.NullString `db:"edited_at"`
	DeletedAt   sql.NullString `db:"deleted_at"`
}

func (r *commentRow) comment() domain.Comment {
	c := domain.Comment{
		ID:          r.ID,
		TaskID:      r.TaskID,
		Body:        r.Body,
		ParentID:    r.ParentID.String,
		ClientToken: r.ClientToken.String,
		CreatedAt:   domain.ParseTimestampOrEpoch(r.CreatedAt),
		ETag:        r.ETag,
		Author: &domain.Author{
			ID:     r.ActorID,
			Name:   r.ActorSlug,
			Role:   r.ActorRole,
			Avatar: r.ActorAvatar.String,
		},
	}
	if r.ActorName.Valid && r.ActorName.String != "" {
		c.Author.Name = r.ActorName.String
	}
	if r.UpdatedAt.Valid {
		t := domain.ParseTimestampOrEpoch(r.UpdatedAt.String)
		c.UpdatedAt = &t
	}
	if r.EditedAt.Valid {
		t := domain.ParseTimestampOrEpoch(r.EditedAt.String)
		c.EditedAt = &t
		c.Edited = true
	}
	if r.Attachments.Valid && r.Attachments.String != "" {
		var attachments []json.RawMessage
		if err := json.Unmarshal([]byte(r.Attachments.String), &attachments); err == nil {
			c.Attachments = attachments
		}
	}
	return c
}

func commentSelect() sq.SelectBuilder {
	return sq.Select(
		"c.uuid", "c.id", "c.task_uuid", "t.id AS task_id",
		"c.actor_uuid", "a.id AS actor_id", "a.slug AS actor_slug",
		"a.display_name AS actor_name", "a.role AS actor_role", "a.avatar_url AS actor_avatar",
		"c.parent_uuid", "p.id AS parent_id",
		"c.body", "c.client_token", "c.attachments", "c.etag",
		"c.created_at", "c.updated_at", "c.edited_at", "c.deleted_at",
	).
		From("comments c").
		Join("tasks t ON t.uuid = c.task_uuid").
		Join("actors a ON a.uuid = c.actor_uuid").
		LeftJoin("comments p ON p.uuid = c.parent_uuid")
}

// List returns a task's comments in chronological order, insertion order
// breaking ties.
func (cs *CommentStore) List(taskUUID string, includeDeleted bool) ([]domain.Comment, error) {
	b := commentSelect().Where(sq.Eq{"c.task_uuid": taskUUID}).OrderBy("c.created_at", "c.rowid")
	if !includeDeleted {
		b = b.Where(sq.Eq{"c.deleted_at": nil})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []commentRow
	if err := cs.store.x.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	out := make([]domain.Comment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].comment())
	}
	return out, nil
}

// Get returns a live comment of the task by friendly id or uuid.
func (cs *CommentStore) Get(taskUUID, ref string) (*domain.Comment, error) {
	row, err := cs.get(cs.store.x, taskUUID, ref)
	if err != nil {
		return nil, err
	}
	c := row.comment()
	return &c, nil
}

func (cs *CommentStore) get(q sqlx.Queryer, taskUUID, ref string) (*commentRow, error) {
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "c:"))
	b := commentSelect().
		Where(sq.Or{sq.Eq{"c.id": ref}, sq.Eq{"c.uuid": ref}}).
		Where(sq.Eq{"c.deleted_at": nil})
	if taskUUID != "" {
		b = b.Where(sq.Eq{"c.task_uuid": taskUUID})
	}
	var row commentRow
	err := selectOne(q, &row, b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load comment %s: %w", ref, err)
	}
	return &row, nil
}

// Create adds a comment authored by actorUUID. Resubmitting a client token
// already used on the task returns the original comment unchanged, or
// ErrNotFound once that comment has been deleted. Tokens are never reused.
func (cs *CommentStore) Create(actorUUID string, params CommentCreateParams) (*domain.Comment, error) {
	body, err := domain.NormalizeBody(params.Body)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(params.ClientToken)

	var created *domain.Comment
	var fresh bool
	err = cs.store.withTx(func(tx *sqlx.Tx, ew *events.Writer) error {
		if token != "" {
			var row commentRow
			err := selectOne(tx, &row, commentSelect().
				Where(sq.Eq{"c.task_uuid": params.TaskUUID, "c.client_token": token}))
			if err == nil {
				if row.DeletedAt.Valid {
					return fmt.Errorf("comment for client token %q was deleted: %w", token, ErrNotFound)
				}
				c := row.comment()
				created = &c
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check client token: %w", err)
			}
		}

		var parentUUID sql.NullString
		if ref := strings.TrimSpace(params.ParentRef); ref != "" {
			parent, err := cs.get(tx, params.TaskUUID, ref)
			if err != nil {
				return fmt.Errorf("parent %w", err)
			}
			parentUUID = sql.NullString{String: parent.UUID, Valid: true}
		}

		var attachments sql.NullString
		if len(params.Attachments) > 0 {
			data, err := json.Marshal(params.Attachments)
			if err != nil {
				return fmt.Errorf("failed to encode attachments: %w", err)
			}
			attachments = sql.NullString{String: string(data), Valid: true}
		}

		commentUUID := uuid.NewString()
		query, args, err := sq.Insert("comments").
			Columns("uuid", "task_uuid", "actor_uuid", "parent_uuid", "body", "client_token", "attachments", "created_at").
			Values(commentUUID, params.TaskUUID, actorUUID, parentUUID, body, nullString(token), attachments, cs.store.timestamp()).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}

		row, err := cs.get(tx, params.TaskUUID, commentUUID)
		if err != nil {
			return err
		}
		c := row.comment()
		created = &c
		fresh = true

		if err := ew.LogCommentCreated(tx, actorUUID, commentUUID, created); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fresh {
		cs.store.notify(webhooks.Payload{
			Event:       webhooks.CommentCreated,
			TaskID:      created.TaskID,
			TaskUUID:    params.TaskUUID,
			CommentID:   created.ID,
			ParentID:    created.ParentID,
			ActorID:     created.AuthorID(),
			ClientToken: created.ClientToken,
			ETag:        created.ETag,
		})
	}
	return created, nil
}

// Update replaces the body of a comment actorUUID authored. ifMatch > 0
// requires the stored etag to equal it.
func (cs *CommentStore) Update(actorUUID, taskUUID, ref, body string, ifMatch int64) (*domain.Comment, error) {
	body, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	var updated *domain.Comment
	var rowTaskUUID string
	err = cs.store.withTx(func(tx *sqlx.Tx, ew *events.Writer) error {
		row, err := cs.get(tx, taskUUID, ref)
		if err != nil {
			return err
		}
		if row.ActorUUID != actorUUID {
			return fmt.Errorf("comment %s: %w", row.ID, ErrForbidden)
		}
		if err := checkETag(row.ETag, ifMatch); err != nil {
			return err
		}

		now := cs.store.timestamp()
		query, args, err := sq.Update("comments").
			Set("body", body).
			Set("etag", sq.Expr("etag + 1")).
			Set("updated_at", now).
			Set("edited_at", now).
			Where(sq.Eq{"uuid": row.UUID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update: %w", err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to update comment: %w", err)
		}

		fresh, err := cs.get(tx, taskUUID, row.UUID)
		if err != nil {
			return err
		}
		c := fresh.comment()
		updated = &c
		rowTaskUUID = fresh.TaskUUID

		if err := ew.LogCommentUpdated(tx, actorUUID, row.UUID, updated, row.Body); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cs.store.notify(webhooks.Payload{
		Event:     webhooks.CommentUpdated,
		TaskID:    updated.TaskID,
		TaskUUID:  rowTaskUUID,
		CommentID: updated.ID,
		ParentID:  updated.ParentID,
		ActorID:   updated.AuthorID(),
		ETag:      updated.ETag,
	})
	return updated, nil
}

// Delete soft-deletes a comment actorUUID authored together with every
// live reply beneath it.
func (cs *CommentStore) Delete(actorUUID, taskUUID, ref string) (*DeleteResult, error) {
	var result *DeleteResult
	var target *commentRow
	err := cs.store.withTx(func(tx *sqlx.Tx, ew *events.Writer) error {
		row, err := cs.get(tx, taskUUID, ref)
		if err != nil {
			return err
		}
		if row.ActorUUID != actorUUID {
			return fmt.Errorf("comment %s: %w", row.ID, ErrForbidden)
		}
		target = row

		var doomed []struct {
			UUID string `db:"uuid"`
			ID   string `db:"id"`
		}
		err = tx.Select(&doomed, `
			WITH RECURSIVE subtree(uuid) AS (
				SELECT ?
				UNION
				SELECT c.uuid FROM comments c
				JOIN subtree s ON c.parent_uuid = s.uuid
				WHERE c.deleted_at IS NULL
			)
			SELECT c.uuid, c.id FROM comments c
			JOIN subtree s ON s.uuid = c.uuid
			ORDER BY c.created_at, c.rowid
		`, row.UUID)
		if err != nil {
			return fmt.Errorf("failed to collect replies: %w", err)
		}

		now := cs.store.timestamp()
		result = &DeleteResult{CommentID: row.ID}
		for _, d := range doomed {
			query, args, err := sq.Update("comments").
				Set("deleted_at", now).
				Set("deleted_by_actor_uuid", actorUUID).
				Set("etag", sq.Expr("etag + 1")).
				Where(sq.Eq{"uuid": d.UUID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build delete: %w", err)
			}
			if _, err := tx.Exec(query, args...); err != nil {
				return fmt.Errorf("failed to delete comment %s: %w", d.ID, err)
			}

			cascadedFrom := ""
			if d.UUID != row.UUID {
				cascadedFrom = row.ID
			}
			if err := ew.LogCommentDeleted(tx, actorUUID, d.UUID, d.ID, row.TaskID, cascadedFrom); err != nil {
				return fmt.Errorf("failed to log event: %w", err)
			}
			result.Removed = append(result.Removed, d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cs.store.notify(webhooks.Payload{
		Event:     webhooks.CommentDeleted,
		TaskID:    target.TaskID,
		TaskUUID:  target.TaskUUID,
		CommentID: target.ID,
		ActorID:   target.ActorID,
		Removed:   result.Removed,
	})
	return result, nil
}
