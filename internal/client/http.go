// Package client provides discussion.Store implementations: an HTTP client
// for discussd and an in-process adapter over the sqlite store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lherron/discuss/internal/discussion"
	"github.com/lherron/discuss/internal/domain"
)

const actorHeader = "X-Discuss-Actor"

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.Status)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// HTTP talks to a discussd daemon.
type HTTP struct {
	baseURL string
	token   string
	actor   string
	client  *http.Client
}

var _ discussion.Store = (*HTTP)(nil)

// NewHTTP creates a client for the daemon at baseURL acting as actor.
func NewHTTP(baseURL, token, actor string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		actor:   actor,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (h *HTTP) WithHTTPClient(c *http.Client) *HTTP {
	h.client = c
	return h
}

func (h *HTTP) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if h.actor != "" {
		req.Header.Set(actorHeader, h.actor)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// List returns the live comments of a task.
func (h *HTTP) List(ctx context.Context, taskID string) ([]domain.Comment, error) {
	var resp struct {
		Comments []wireComment `json:"comments"`
	}
	if err := h.post(ctx, "/v1/comments/list", map[string]any{"task": taskID}, &resp); err != nil {
		return nil, err
	}
	return normalizeAll(resp.Comments), nil
}

// Add creates a comment. The client token is sent so the daemon can echo it
// and deduplicate retries.
func (h *HTTP) Add(ctx context.Context, taskID string, c domain.NewComment) (*domain.Comment, error) {
	var resp struct {
		Comment *wireComment `json:"comment"`
	}
	err := h.post(ctx, "/v1/comments/create", map[string]any{
		"task":         taskID,
		"body":         c.Body,
		"parent_id":    c.ParentID,
		"client_token": c.ClientToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Comment.normalize(), nil
}

// Edit replaces a comment body.
func (h *HTTP) Edit(ctx context.Context, taskID, commentID, body string) (*domain.Comment, error) {
	var resp struct {
		Comment *wireComment `json:"comment"`
	}
	err := h.post(ctx, "/v1/comments/update", map[string]any{
		"task":    taskID,
		"comment": commentID,
		"body":    body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Comment.normalize(), nil
}

// Delete removes a comment and its replies, returning the deleted id.
func (h *HTTP) Delete(ctx context.Context, taskID, commentID string) (string, error) {
	var resp struct {
		CommentID string `json:"comment_id"`
	}
	err := h.post(ctx, "/v1/comments/delete", map[string]any{
		"task":    taskID,
		"comment": commentID,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.CommentID == "" {
		resp.CommentID = commentID
	}
	return resp.CommentID, nil
}

// Whoami returns the viewer the daemon resolves for this client's actor.
func (h *HTTP) Whoami(ctx context.Context) (domain.Viewer, error) {
	var resp struct {
		Actor *domain.Actor `json:"actor"`
	}
	if err := h.post(ctx, "/v1/actors/get", nil, &resp); err != nil {
		return domain.Viewer{}, err
	}
	if resp.Actor == nil {
		return domain.Viewer{}, fmt.Errorf("daemon returned no actor")
	}
	return resp.Actor.Viewer(), nil
}

// CreateActor registers an actor with the daemon.
func (h *HTTP) CreateActor(ctx context.Context, slug, name, role string) (*domain.Actor, error) {
	var resp struct {
		Actor *domain.Actor `json:"actor"`
	}
	err := h.post(ctx, "/v1/actors/create", map[string]any{"slug": slug, "name": name, "role": role}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Actor, nil
}

// CreateTask registers a task with the daemon.
func (h *HTTP) CreateTask(ctx context.Context, slug, title string, webhookURLs []string) (*domain.Task, error) {
	var resp struct {
		Task *domain.Task `json:"task"`
	}
	err := h.post(ctx, "/v1/tasks/create", map[string]any{
		"slug":         slug,
		"title":        title,
		"webhook_urls": webhookURLs,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Task, nil
}
