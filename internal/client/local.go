package client

import (
	"context"
	"fmt"

	"github.com/lherron/discuss/internal/discussion"
	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/store"
)

// Backend is what the CLI needs from either transport.
type Backend interface {
	discussion.Store
	Whoami(ctx context.Context) (domain.Viewer, error)
	CreateActor(ctx context.Context, slug, name, role string) (*domain.Actor, error)
	CreateTask(ctx context.Context, slug, title string, webhookURLs []string) (*domain.Task, error)
}

var (
	_ Backend = (*HTTP)(nil)
	_ Backend = (*Local)(nil)
)

// Local serves discussion calls directly from a sqlite store.
type Local struct {
	store *store.Store
	actor string
}

// NewLocal creates an adapter acting as actor (uuid, id, or slug).
func NewLocal(s *store.Store, actor string) *Local {
	return &Local{store: s, actor: actor}
}

func (l *Local) actorUUID() (string, error) {
	if l.actor == "" {
		return "", fmt.Errorf("no actor configured (set DISCUSS_ACTOR or pass --as)")
	}
	a, err := l.store.Actors.Resolve(l.actor)
	if err != nil {
		return "", err
	}
	return a.UUID, nil
}

func (l *Local) taskUUID(ref string) (string, error) {
	task, err := l.store.Tasks.Resolve(ref)
	if err != nil {
		return "", err
	}
	return task.UUID, nil
}

// List returns the live comments of a task.
func (l *Local) List(ctx context.Context, taskID string) ([]domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	taskUUID, err := l.taskUUID(taskID)
	if err != nil {
		return nil, err
	}
	return l.store.Comments.List(taskUUID, false)
}

func (l *Local) Add(ctx context.Context, taskID string, c domain.NewComment) (*domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	actorUUID, err := l.actorUUID()
	if err != nil {
		return nil, err
	}
	taskUUID, err := l.taskUUID(taskID)
	if err != nil {
		return nil, err
	}
	return l.store.Comments.Create(actorUUID, store.CommentCreateParams{
		TaskUUID:    taskUUID,
		Body:        c.Body,
		ParentRef:   c.ParentID,
		ClientToken: c.ClientToken,
	})
}

func (l *Local) Edit(ctx context.Context, taskID, commentID, body string) (*domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	actorUUID, err := l.actorUUID()
	if err != nil {
		return nil, err
	}
	taskUUID, err := l.taskUUID(taskID)
	if err != nil {
		return nil, err
	}
	return l.store.Comments.Update(actorUUID, taskUUID, commentID, body, 0)
}

func (l *Local) Delete(ctx context.Context, taskID, commentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	actorUUID, err := l.actorUUID()
	if err != nil {
		return "", err
	}
	taskUUID, err := l.taskUUID(taskID)
	if err != nil {
		return "", err
	}
	result, err := l.store.Comments.Delete(actorUUID, taskUUID, commentID)
	if err != nil {
		return "", err
	}
	return result.CommentID, nil
}

// Whoami resolves the configured actor.
func (l *Local) Whoami(ctx context.Context) (domain.Viewer, error) {
	if l.actor == "" {
		return domain.Viewer{}, fmt.Errorf("no actor configured (set DISCUSS_ACTOR or pass --as)")
	}
	a, err := l.store.Actors.Resolve(l.actor)
	if err != nil {
		return domain.Viewer{}, err
	}
	return a.Viewer(), nil
}

func (l *Local) CreateActor(ctx context.Context, slug, name, role string) (*domain.Actor, error) {
	return l.store.Actors.Create(store.ActorCreateParams{Slug: slug, DisplayName: name, Role: role})
}

// CreateTask creates a task owned by the configured actor.
func (l *Local) CreateTask(ctx context.Context, slug, title string, webhookURLs []string) (*domain.Task, error) {
	actorUUID, err := l.actorUUID()
	if err != nil {
		return nil, err
	}
	return l.store.Tasks.Create(actorUUID, store.TaskCreateParams{Slug: slug, Title: title, WebhookURLs: webhookURLs})
}
