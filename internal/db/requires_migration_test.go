package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/lherron/discuss/internal/db"
)

func TestRequiresMigrationError(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, database *db.DB)
		want    []string // substrings; nil means no error
	}{
		{
			name:    "fresh database",
			prepare: func(*testing.T, *db.DB) {},
			want:    []string{"version: none", "pending migration", "discuss init"},
		},
		{
			name: "partially migrated",
			prepare: func(t *testing.T, database *db.DB) {
				_, err := database.Exec(`
					CREATE TABLE schema_migrations (
						version TEXT PRIMARY KEY,
						applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
					);
					INSERT INTO schema_migrations (version) VALUES ('000001_baseline.sql');
				`)
				if err != nil {
					t.Fatalf("could not seed schema_migrations: %v", err)
				}
			},
			want: []string{"version: 000001_baseline.sql", "1 pending migration"},
		},
		{
			name: "fully migrated",
			prepare: func(t *testing.T, database *db.DB) {
				if err := database.Migrate(); err != nil {
					t.Fatalf("could not run migrations: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "test.db")
			database, err := db.Open(dbPath)
			if err != nil {
				t.Fatalf("could not open db: %v", err)
			}
			defer database.Close()

			tt.prepare(t, database)
			migErr := database.RequiresMigrationError()

			if tt.want == nil {
				if migErr != nil {
					t.Fatalf("expected nil, got: %v", migErr)
				}
				return
			}
			if migErr == nil {
				t.Fatal("expected migration error, got nil")
			}
			errStr := migErr.Error()
			if !strings.Contains(errStr, dbPath) {
				t.Errorf("error should contain db path %q, got: %s", dbPath, errStr)
			}
			for _, sub := range tt.want {
				if !strings.Contains(errStr, sub) {
					t.Errorf("error should contain %q, got: %s", sub, errStr)
				}
			}
		})
	}
}

func TestMigrateWithInfoIsIdempotent(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer database.Close()

	applied, err := database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 migrations applied, got %v", applied)
	}

	applied, err = database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing to apply, got %v", applied)
	}

	done, pending, err := database.MigrationStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(done) != 2 || len(pending) != 0 {
		t.Errorf("status = %v applied, %v pending", done, pending)
	}
}
