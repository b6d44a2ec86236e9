// Package db owns the schema of search indexes created by craftsearch.
//
// Indexes written by Craft itself are opened read-only and never migrated; the
// migrations here only run against databases created with storage.Create, which
// is how the index command and the tests build their own spaces.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/craftsearch/pkg/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var logger = log.ForService("db")

// Migration is a single versioned schema change.
type Migration struct {
	Version   int
	Name      string
	SQL       string
	AppliedAt *time.Time
}

// MigrationStatus describes which migrations have been applied to a database.
type MigrationStatus struct {
	Applied   []Migration
	Pending   []Migration
	Available []Migration
}

// MigrationManager applies the embedded migrations to a database.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager for db.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// EnsureMigrationsTable creates the bookkeeping table if it does not exist.
func (m *MigrationManager) EnsureMigrationsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

// AppliedMigrations returns the applied versions and when they were applied.
func (m *MigrationManager) AppliedMigrations() (map[int]time.Time, error) {
	rows, err := m.db.Query("SELECT version, applied_at FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// PendingMigrations returns the embedded migrations not yet applied, in version order.
func (m *MigrationManager) PendingMigrations() ([]Migration, error) {
	applied, err := m.AppliedMigrations()
	if err != nil {
		return nil, err
	}
	available, err := EmbeddedMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range available {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// ApplyMigration runs one migration and records it in a single transaction.
func (m *MigrationManager) ApplyMigration(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback migration %d: %v", mig.Version, err)
			}
		}
	}()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return fmt.Errorf("executing migration %d: %w", mig.Version, err)
	}
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", mig.Version); err != nil {
		return fmt.Errorf("recording migration %d: %w", mig.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", mig.Version, err)
	}
	committed = true
	return nil
}

// ApplyPendingMigrations brings the database up to the latest schema.
func (m *MigrationManager) ApplyPendingMigrations() error {
	if err := m.EnsureMigrationsTable(); err != nil {
		return fmt.Errorf("ensuring migrations table: %w", err)
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return fmt.Errorf("getting pending migrations: %w", err)
	}

	for _, mig := range pending {
		logger.Debugf("applying migration %d: %s", mig.Version, mig.Name)
		if err := m.ApplyMigration(mig); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Status reports applied and pending migrations.
func (m *MigrationManager) Status() (*MigrationStatus, error) {
	if err := m.EnsureMigrationsTable(); err != nil {
		return nil, fmt.Errorf("ensuring migrations table: %w", err)
	}

	applied, err := m.AppliedMigrations()
	if err != nil {
		return nil, err
	}
	available, err := EmbeddedMigrations()
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{Available: available}
	for _, mig := range available {
		if at, ok := applied[mig.Version]; ok {
			at := at
			mig.AppliedAt = &at
			status.Applied = append(status.Applied, mig)
		} else {
			status.Pending = append(status.Pending, mig)
		}
	}
	return status, nil
}

// InitializeDatabase applies every embedded migration to db.
func InitializeDatabase(db *sql.DB) error {
	if err := NewMigrationManager(db).ApplyPendingMigrations(); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// EmbeddedMigrations returns the embedded migrations sorted by version.
// Files are named NNN_name.sql; files not following that pattern are ignored.
func EmbeddedMigrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		content, err := migrationsFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration file %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
