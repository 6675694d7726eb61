// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lherron/discuss/internal/db"
	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/store"
)

// TempDB creates a migrated SQLite database under t.TempDir.
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// TempStore returns a store over a fresh database with webhooks disabled and
// a clock that advances one second per call.
func TempStore(t *testing.T) *store.Store {
	t.Helper()
	database, _ := TempDB(t)
	s := store.New(database)
	s.SetNotifier(nil)
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	return s
}

// Fixture is a store seeded with two actors and one task.
type Fixture struct {
	Store *store.Store
	Alice *domain.Actor
	Bob   *domain.Actor
	Task  *domain.Task
}

// Seed creates alice (hr), bob and the task "onboarding" owned by alice.
func Seed(t *testing.T) *Fixture {
	t.Helper()
	s := TempStore(t)
	alice, err := s.Actors.Create(store.ActorCreateParams{Slug: "alice", DisplayName: "Alice Smith", Role: "hr"})
	AssertNoError(t, err)
	bob, err := s.Actors.Create(store.ActorCreateParams{Slug: "bob", DisplayName: "Bob Jones"})
	AssertNoError(t, err)
	task, err := s.Tasks.Create(alice.UUID, store.TaskCreateParams{Slug: "onboarding", Title: "Onboarding checklist"})
	AssertNoError(t, err)
	return &Fixture{Store: s, Alice: alice, Bob: bob, Task: task}
}

// AssertNoError asserts that an error is nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}
