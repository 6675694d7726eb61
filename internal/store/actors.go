package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/events"
)

// ActorStore handles actor persistence operations.
type ActorStore struct {
	store *Store
}

// ActorCreateParams contains parameters for creating an actor.
type ActorCreateParams struct {
	Slug        string
	DisplayName string
	Role        string // defaults to "employee"
	AvatarURL   string
}

type actorRow struct {
	UUID        string         `db:"uuid"`
	ID          string         `db:"id"`
	Slug        string         `db:"slug"`
	DisplayName sql.NullString `db:"display_name"`
	Role        string         `db:"role"`
	AvatarURL   sql.NullString `db:"avatar_url"`
	CreatedAt   string         `db:"created_at"`
}

func (r *actorRow) actor() *domain.Actor {
	a := &domain.Actor{
		UUID:      r.UUID,
		ID:        r.ID,
		Slug:      r.Slug,
		Role:      r.Role,
		CreatedAt: domain.ParseTimestampOrEpoch(r.CreatedAt),
	}
	if r.DisplayName.Valid {
		a.DisplayName = &r.DisplayName.String
	}
	if r.AvatarURL.Valid {
		a.AvatarURL = &r.AvatarURL.String
	}
	return a
}

var actorColumns = []string{"uuid", "id", "slug", "display_name", "role", "avatar_url", "created_at"}

// Create inserts an actor and logs an actor.created event attributed to itself.
func (as *ActorStore) Create(params ActorCreateParams) (*domain.Actor, error) {
	actorSlug, err := normalizeSlug("actor", params.Slug)
	if err != nil {
		return nil, err
	}
	role := strings.TrimSpace(params.Role)
	if role == "" {
		role = string(domain.ActorRoleEmployee)
	}
	if err := domain.ValidateActorRole(role); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var created *domain.Actor
	err = as.store.withTx(func(tx *sqlx.Tx, ew *events.Writer) error {
		actorUUID := uuid.NewString()
		query, args, err := sq.Insert("actors").
			Columns("uuid", "slug", "display_name", "role", "avatar_url", "created_at").
			Values(actorUUID, actorSlug, nullString(params.DisplayName), role, nullString(params.AvatarURL), as.store.timestamp()).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to create actor: %w", err)
		}

		var row actorRow
		if err := selectOne(tx, &row, sq.Select(actorColumns...).From("actors").Where(sq.Eq{"uuid": actorUUID})); err != nil {
			return fmt.Errorf("failed to read actor: %w", err)
		}
		created = row.actor()

		if err := ew.LogActorCreated(tx, actorUUID, created); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	return created, err
}

// Resolve finds an actor by uuid, friendly id, or slug.
func (as *ActorStore) Resolve(ref string) (*domain.Actor, error) {
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "a:"))
	if ref == "" {
		return nil, fmt.Errorf("actor reference is required")
	}
	var row actorRow
	err := selectOne(as.store.x, &row, sq.Select(actorColumns...).From("actors").
		Where(sq.Or{sq.Eq{"uuid": ref}, sq.Eq{"id": ref}, sq.Eq{"slug": ref}}))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("actor %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor %s: %w", ref, err)
	}
	return row.actor(), nil
}

// List returns all actors ordered by friendly id.
func (as *ActorStore) List() ([]domain.Actor, error) {
	query, args, err := sq.Select(actorColumns...).From("actors").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	var rows []actorRow
	if err := as.store.x.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list actors: %w", err)
	}
	out := make([]domain.Actor, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].actor())
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
