package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmbeddedMigrationsSorted(t *testing.T) {
	migrations, err := EmbeddedMigrations()
	if err != nil {
		t.Fatalf("EmbeddedMigrations: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(migrations))
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].Version >= migrations[i].Version {
			t.Errorf("migrations not sorted: %d before %d", migrations[i-1].Version, migrations[i].Version)
		}
	}
	if migrations[0].Name != "block_search" {
		t.Errorf("first migration name = %q, want block_search", migrations[0].Name)
	}
}

func TestInitializeDatabaseIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := InitializeDatabase(db); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	if err := InitializeDatabase(db); err != nil {
		t.Fatalf("second initialize: %v", err)
	}

	status, err := NewMigrationManager(db).Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Pending) != 0 {
		t.Errorf("expected no pending migrations, got %d", len(status.Pending))
	}
	if len(status.Applied) != len(status.Available) {
		t.Errorf("applied %d of %d migrations", len(status.Applied), len(status.Available))
	}
	for _, m := range status.Applied {
		if m.AppliedAt == nil {
			t.Errorf("migration %d has no applied time", m.Version)
		}
	}

	if _, err := db.Exec(`INSERT INTO BlockSearch (id, content, exactMatchContent, type, entityType, documentId, customRank)
		VALUES ('a', 'hello world', 'hello world', 'text', 'document', 'a', 0)`); err != nil {
		t.Fatalf("inserting into BlockSearch: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM BlockSearch WHERE BlockSearch MATCH '"hello"'`).Scan(&n); err != nil {
		t.Fatalf("matching: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 match, got %d", n)
	}
}

func TestPendingBeforeInitialize(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrationManager(db)
	if err := m.EnsureMigrationsTable(); err != nil {
		t.Fatalf("EnsureMigrationsTable: %v", err)
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		t.Fatalf("PendingMigrations: %v", err)
	}
	available, _ := EmbeddedMigrations()
	if len(pending) != len(available) {
		t.Errorf("expected all %d migrations pending, got %d", len(available), len(pending))
	}
}
