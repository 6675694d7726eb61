package webhooks_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/lherron/discuss/internal/db"
	"github.com/lherron/discuss/internal/webhooks"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func setupTask(t *testing.T, database *db.DB, uuid string, urls []string) {
	t.Helper()
	var raw any
	if urls != nil {
		data, _ := json.Marshal(urls)
		raw = string(data)
	}
	_, err := database.Exec(`INSERT INTO tasks (uuid, slug, title, webhook_urls) VALUES (?, ?, ?, ?)`,
		uuid, "task-"+uuid, "Task", raw)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
}

func TestResolveWebhookTargets(t *testing.T) {
	database := setupTestDB(t)
	setupTask(t, database, "task-uuid", []string{
		"http://example.com/hook/{task_id}",
		"ftp://invalid.example.com/hook",
		"http://example.com/hook/{task_id}/",
		"  ",
		"https://example.com/{event}/{comment_id}",
	})

	payload := webhooks.Payload{
		Event:     webhooks.CommentCreated,
		TaskID:    "T-00001",
		TaskUUID:  "task-uuid",
		CommentID: "C-00007",
	}
	urls, err := webhooks.ResolveWebhookTargets(database, payload)
	if err != nil {
		t.Fatalf("ResolveWebhookTargets failed: %v", err)
	}

	expected := []string{
		"http://example.com/hook/T-00001",
		"https://example.com/comment.created/C-00007",
	}
	if !reflect.DeepEqual(urls, expected) {
		t.Fatalf("unexpected urls\nexpected: %v\nactual:   %v", expected, urls)
	}
}

func TestResolveWebhookTargetsNone(t *testing.T) {
	database := setupTestDB(t)
	setupTask(t, database, "task-uuid", nil)

	urls, err := webhooks.ResolveWebhookTargets(database, webhooks.Payload{TaskUUID: "task-uuid"})
	if err != nil {
		t.Fatalf("ResolveWebhookTargets failed: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("expected no urls, got %v", urls)
	}

	if _, err := webhooks.ResolveWebhookTargets(database, webhooks.Payload{TaskUUID: "missing"}); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestDispatchPostsPayload(t *testing.T) {
	var mu sync.Mutex
	got := map[string]webhooks.Payload{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		var payload webhooks.Payload
		_ = json.Unmarshal(body, &payload)
		mu.Lock()
		got[r.URL.Path] = payload
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	database := setupTestDB(t)
	setupTask(t, database, "task-uuid", []string{server.URL + "/a/{task_id}", server.URL + "/b"})

	webhooks.Dispatch(database, webhooks.Payload{
		Event:    webhooks.CommentDeleted,
		TaskID:   "T-00001",
		TaskUUID: "task-uuid",
		Removed:  []string{"C-00001", "C-00002"},
	})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	p, ok := got["/a/T-00001"]
	if !ok {
		t.Fatalf("missing templated delivery, got %v", got)
	}
	if p.Event != webhooks.CommentDeleted || !reflect.DeepEqual(p.Removed, []string{"C-00001", "C-00002"}) {
		t.Errorf("unexpected payload: %+v", p)
	}
}
