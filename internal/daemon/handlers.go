package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/store"
)

type commentsListRequest struct {
	Task           string `json:"task"`
	IncludeDeleted bool   `json:"include_deleted"`
}

type commentsCreateRequest struct {
	Task        string            `json:"task"`
	Body        string            `json:"body"`
	ParentID    string            `json:"parent_id"`
	ClientToken string            `json:"client_token"`
	Attachments []json.RawMessage `json:"attachments"`
}

type commentsUpdateRequest struct {
	Task    string `json:"task"`
	Comment string `json:"comment"`
	Body    string `json:"body"`
	IfMatch int64  `json:"if_match"`
}

type commentsDeleteRequest struct {
	Task    string `json:"task"`
	Comment string `json:"comment"`
}

type actorsCreateRequest struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

type tasksCreateRequest struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	WebhookURLs []string `json:"webhook_urls"`
}

func (s *Server) resolveTask(w http.ResponseWriter, ref string) (*domain.Task, bool) {
	if strings.TrimSpace(ref) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("task is required"))
		return nil, false
	}
	task, err := s.store.Tasks.Resolve(ref)
	if err != nil {
		s.fail(w, "resolve task", err)
		return nil, false
	}
	return task, true
}

func (s *Server) resolveActor(w http.ResponseWriter, r *http.Request) (*domain.Actor, bool) {
	actor, err := s.actor(r)
	if err != nil {
		if errors.Is(err, errActorRequired) {
			writeError(w, http.StatusBadRequest, err)
		} else {
			s.fail(w, "resolve actor", err)
		}
		return nil, false
	}
	return actor, true
}

func (s *Server) listComments(w http.ResponseWriter, taskRef string, includeDeleted bool) {
	task, ok := s.resolveTask(w, taskRef)
	if !ok {
		return
	}
	comments, err := s.store.Comments.List(task.UUID, includeDeleted)
	if err != nil {
		s.fail(w, "list comments", err)
		return
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *Server) handleCommentsList(w http.ResponseWriter, r *http.Request) {
	var req commentsListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.listComments(w, req.Task, req.IncludeDeleted)
}

func (s *Server) handleTaskComments(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	s.listComments(w, mux.Vars(r)["task"], includeDeleted)
}

func (s *Server) handleCommentsCreate(w http.ResponseWriter, r *http.Request) {
	var req commentsCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	task, ok := s.resolveTask(w, req.Task)
	if !ok {
		return
	}

	comment, err := s.store.Comments.Create(actor.UUID, store.CommentCreateParams{
		TaskUUID:    task.UUID,
		Body:        req.Body,
		ParentRef:   req.ParentID,
		ClientToken: req.ClientToken,
		Attachments: req.Attachments,
	})
	if err != nil {
		s.fail(w, "create comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (s *Server) handleCommentsUpdate(w http.ResponseWriter, r *http.Request) {
	var req commentsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Comment == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("comment is required"))
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	task, ok := s.resolveTask(w, req.Task)
	if !ok {
		return
	}

	comment, err := s.store.Comments.Update(actor.UUID, task.UUID, req.Comment, req.Body, req.IfMatch)
	if err != nil {
		s.fail(w, "update comment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": comment})
}

func (s *Server) handleCommentsDelete(w http.ResponseWriter, r *http.Request) {
	var req commentsDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Comment == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("comment is required"))
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	task, ok := s.resolveTask(w, req.Task)
	if !ok {
		return
	}

	result, err := s.store.Comments.Delete(actor.UUID, task.UUID, req.Comment)
	if err != nil {
		s.fail(w, "delete comment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comment_id": result.CommentID,
		"removed":    result.Removed,
	})
}

func (s *Server) handleActorsGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actor": actor})
}

func (s *Server) handleActorsCreate(w http.ResponseWriter, r *http.Request) {
	var req actorsCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Slug) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("slug is required"))
		return
	}
	if req.Role != "" {
		if err := domain.ValidateActorRole(req.Role); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	actor, err := s.store.Actors.Create(store.ActorCreateParams{
		Slug:        req.Slug,
		DisplayName: req.Name,
		Role:        req.Role,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		s.fail(w, "create actor", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"actor": actor})
}

func (s *Server) handleTasksCreate(w http.ResponseWriter, r *http.Request) {
	var req tasksCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Slug) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("slug is required"))
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}

	task, err := s.store.Tasks.Create(actor.UUID, store.TaskCreateParams{
		Slug:        req.Slug,
		Title:       req.Title,
		WebhookURLs: req.WebhookURLs,
	})
	if err != nil {
		s.fail(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": task})
}
