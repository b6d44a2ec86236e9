// Package storage gives access to the per-space search indexes.
//
// Craft keeps one SQLite database per space with an FTS5 table named BlockSearch.
// An Index wraps one of those databases; a Manager opens every configured space
// and hands the indexes out in a fixed order.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/text/unicode/norm"

	"github.com/rubiojr/craftsearch/pkg/core"
	"github.com/rubiojr/craftsearch/pkg/db"
	"github.com/rubiojr/craftsearch/pkg/log"
)

// DefaultLimit caps the number of rows returned when no limit is given.
const DefaultLimit = 40

// headerBatch bounds the number of bound parameters per header lookup.
const headerBatch = 500

var logger = log.ForService("storage")

// Index is the search index of a single space.
type Index struct {
	db       *sql.DB
	spaceID  string
	path     string
	readOnly bool
}

// Open opens an existing index read-only. This is how Craft's own files are accessed.
func Open(path, spaceID string) (*Index, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving index path %s: %w", path, err)
	}
	// Pragmas go in the DSN so every pooled connection gets them.
	query := url.Values{}
	query.Set("mode", "ro")
	query["_pragma"] = []string{"busy_timeout(5000)", "query_only(1)", "temp_store(memory)"}
	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: query.Encode()}).String()
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}

	idx := &Index{db: sqldb, spaceID: spaceID, path: path, readOnly: true}
	if err := idx.ping(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return idx, nil
}

// ErrForeignIndex is returned by Create for an existing index that was not
// created by craftsearch.
var ErrForeignIndex = errors.New("index was not created by craftsearch")

// Create opens or creates a writable index at path and applies the schema migrations.
// Indexes written by Craft are refused with ErrForeignIndex.
func Create(path, spaceID string) (*Index, error) {
	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}

	if err := checkManaged(sqldb); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// One writer connection, so the pragmas below hold for every statement.
	sqldb.SetMaxOpenConns(1)

	// Rollback journal rather than WAL: these files are later opened with mode=ro,
	// which cannot create the shared-memory file a WAL database needs.
	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = memory",
	}
	if err := applyPragmas(sqldb, pragmas); err != nil {
		sqldb.Close()
		return nil, err
	}

	if err := db.InitializeDatabase(sqldb); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("initializing index %s: %w", path, err)
	}

	if _, err := sqldb.Exec(`INSERT OR REPLACE INTO space_info (key, value) VALUES ('space_id', ?)`, spaceID); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("recording space id: %w", err)
	}

	return &Index{db: sqldb, spaceID: spaceID, path: path}, nil
}

// checkManaged fails when the database already holds a BlockSearch table but
// no migrations bookkeeping, which is what a Craft index looks like.
func checkManaged(sqldb *sql.DB) error {
	var hasSearch, hasMigrations bool
	rows, err := sqldb.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("inspecting schema: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspecting schema: %w", err)
		}
		switch name {
		case "BlockSearch":
			hasSearch = true
		case "migrations":
			hasMigrations = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspecting schema: %w", err)
	}
	if hasSearch && !hasMigrations {
		return ErrForeignIndex
	}
	return nil
}

// MigrationStatus reports the schema migrations applied to a writable index.
func (s *Index) MigrationStatus() (*db.MigrationStatus, error) {
	if s.readOnly {
		return nil, fmt.Errorf("index %s is read-only", s.path)
	}
	return db.NewMigrationManager(s.db).Status()
}

func applyPragmas(sqldb *sql.DB, pragmas []string) error {
	for _, pragma := range pragmas {
		if _, err := sqldb.Exec(pragma); err != nil {
			return fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// ping checks that the BlockSearch table is present.
func (s *Index) ping() error {
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE name = 'BlockSearch'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("index %s has no BlockSearch table", s.path)
	}
	if err != nil {
		return fmt.Errorf("checking index %s: %w", s.path, err)
	}
	return nil
}

// SpaceID returns the id of the space this index belongs to.
func (s *Index) SpaceID() string { return s.spaceID }

// Path returns the database file path.
func (s *Index) Path() string { return s.path }

// ReadOnly reports whether the index was opened read-only.
func (s *Index) ReadOnly() bool { return s.readOnly }

// Close closes the underlying database.
func (s *Index) Close() error {
	return s.db.Close()
}

// Search runs one of the two block query shapes. With a non-empty match expression
// rows are filtered with MATCH and ordered by rank + customRank; with an empty one
// every row is a candidate and customRank alone orders them. Rows that cannot be
// mapped are logged and skipped.
func (s *Index) Search(ctx context.Context, match string, limit int) ([]core.Block, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	projection := strings.Join(Columns, ", ")
	var sqlQuery string
	var args []any
	if match != "" {
		sqlQuery = `SELECT ` + projection + `
			FROM BlockSearch
			WHERE BlockSearch MATCH ?
			ORDER BY rank + customRank
			LIMIT ?`
		args = []any{match, limit}
	} else {
		sqlQuery = `SELECT ` + projection + `
			FROM BlockSearch
			ORDER BY customRank
			LIMIT ?`
		args = []any{limit}
	}

	return s.queryBlocks(ctx, sqlQuery, args...)
}

// Headers returns the document rows for the given document ids. Ids without a
// document row are absent from the result.
func (s *Index) Headers(ctx context.Context, documentIDs []string) ([]core.Block, error) {
	var headers []core.Block
	for start := 0; start < len(documentIDs); start += headerBatch {
		end := min(start+headerBatch, len(documentIDs))
		batch := documentIDs[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
		sqlQuery := `SELECT ` + strings.Join(Columns, ", ") + `
			FROM BlockSearch
			WHERE entityType = ? AND documentId IN (` + placeholders + `)`

		args := make([]any, 0, len(batch)+1)
		args = append(args, core.EntityDocument)
		for _, id := range batch {
			args = append(args, id)
		}

		blocks, err := s.queryBlocks(ctx, sqlQuery, args...)
		if err != nil {
			return nil, err
		}
		headers = append(headers, blocks...)
	}
	return headers, nil
}

func (s *Index) queryBlocks(ctx context.Context, sqlQuery string, args ...any) ([]core.Block, error) {
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying blocks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var blocks []core.Block
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		block, err := MapRow(values, s.spaceID)
		if err != nil {
			logger.Warnf("skipping row: %v", err)
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// Record is a block as stored in an index, including its ranking bias.
// Lower CustomRank values sort first.
type Record struct {
	core.Block
	CustomRank int64 `json:"customRank"`
}

// StoreRecords writes records into a writable index in a single transaction.
// exactMatchContent is derived from the content.
func (s *Index) StoreRecords(records []Record) error {
	if s.readOnly {
		return fmt.Errorf("index %s is read-only", s.path)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	del, err := tx.Prepare(`DELETE FROM BlockSearch WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("preparing delete statement: %w", err)
	}
	defer del.Close()

	ins, err := tx.Prepare(`
		INSERT INTO BlockSearch (id, content, exactMatchContent, type, entityType, documentId, customRank)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer ins.Close()

	for _, r := range records {
		if _, err := del.Exec(r.ID); err != nil {
			return fmt.Errorf("replacing block %s: %w", r.ID, err)
		}
		documentID := r.DocumentID
		if documentID == "" && r.IsDocument() {
			documentID = r.ID
		}
		_, err := ins.Exec(r.ID, r.Content, exactMatchContent(r.Content), r.Type, r.EntityType, documentID, r.CustomRank)
		if err != nil {
			return fmt.Errorf("inserting block %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing blocks: %w", err)
	}
	committed = true
	return nil
}

// Count returns the number of rows in the index.
func (s *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM BlockSearch`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting blocks: %w", err)
	}
	return n, nil
}

func exactMatchContent(content string) string {
	return strings.ToLower(norm.NFC.String(content))
}
