package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lherron/discuss/internal/db"
)

const (
	defaultTimeout     = 500 * time.Millisecond
	defaultConcurrency = 4
)

// Event names carried in Payload.Event.
const (
	CommentCreated = "comment.created"
	CommentUpdated = "comment.updated"
	CommentDeleted = "comment.deleted"
)

// Payload notifies subscribers that a task's discussion changed. Receivers
// are expected to refetch the comment list rather than apply the payload.
type Payload struct {
	Event       string   `json:"event"`
	TaskID      string   `json:"task_id"`
	TaskUUID    string   `json:"task_uuid"`
	CommentID   string   `json:"comment_id"`
	ParentID    string   `json:"parent_id,omitempty"`
	ActorID     string   `json:"actor_id"`
	ClientToken string   `json:"client_token,omitempty"`
	ETag        int64    `json:"etag"`
	Removed     []string `json:"removed,omitempty"`
}

// Dispatch resolves the task's webhook targets and posts payload to each.
// Failures are logged and never surface to the caller.
func Dispatch(database *db.DB, payload Payload) {
	urls, err := ResolveWebhookTargets(database, payload)
	if err != nil {
		log.Printf("webhooks: resolve targets for task %s failed: %v", payload.TaskID, err)
		return
	}
	dispatchURLs(urls, payload)
}

// ResolveWebhookTargets loads, templates, normalizes, and de-dupes the
// task's webhook URLs.
func ResolveWebhookTargets(database *db.DB, payload Payload) ([]string, error) {
	var raw *string
	if err := database.QueryRow(`SELECT webhook_urls FROM tasks WHERE uuid = ?`, payload.TaskUUID).Scan(&raw); err != nil {
		return nil, fmt.Errorf("query webhook urls: %w", err)
	}
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(*raw), &urls); err != nil {
		return nil, fmt.Errorf("parse webhook urls: %w", err)
	}
	return normalizeWebhookURLs(urls, payload), nil
}

func normalizeWebhookURLs(urls []string, payload Payload) []string {
	if len(urls) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(urls))
	var normalized []string

	for _, raw := range urls {
		templated := strings.TrimSpace(applyTemplate(strings.TrimSpace(raw), payload))
		templated = strings.TrimRight(templated, "/")
		if templated == "" {
			continue
		}
		if !isValidWebhookURL(templated) {
			log.Printf("webhooks: skipping invalid url %q", templated)
			continue
		}
		if _, ok := seen[templated]; ok {
			continue
		}
		seen[templated] = struct{}{}
		normalized = append(normalized, templated)
	}

	return normalized
}

func applyTemplate(raw string, payload Payload) string {
	return strings.NewReplacer(
		"{task_id}", payload.TaskID,
		"{comment_id}", payload.CommentID,
		"{event}", payload.Event,
	).Replace(raw)
}

func isValidWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func dispatchURLs(urls []string, payload Payload) {
	if len(urls) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhooks: failed to encode payload: %v", err)
		return
	}

	client := &http.Client{Timeout: defaultTimeout}
	workers := min(defaultConcurrency, len(urls))

	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				sendWebhook(client, endpoint, body)
			}
		}()
	}

	for _, endpoint := range urls {
		jobs <- endpoint
	}
	close(jobs)
	wg.Wait()
}

func sendWebhook(client *http.Client, endpoint string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhooks: build request %q failed: %v", endpoint, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("webhooks: request to %q failed: %v", endpoint, err)
		return
	}
	if resp.StatusCode >= 300 {
		log.Printf("webhooks: %q returned %s", endpoint, resp.Status)
	}
	_ = resp.Body.Close()
}
