// Package integration_tests exercises craftsearch end to end: real SQLite
// indexes, the search service, the index watcher and the HTTP API together.
package integration_tests

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rubiojr/craftsearch/pkg/core"
	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

// Record builds an index record.
func Record(id, docID, entityType, content string, rank int64) storage.Record {
	return storage.Record{
		Block:      core.Block{ID: id, DocumentID: docID, EntityType: entityType, Content: content},
		CustomRank: rank,
	}
}

// Document builds a document record and n child blocks whose content is
// prefix followed by the block number.
func Document(docID, title, prefix string, n int) []storage.Record {
	records := []storage.Record{Record(docID, docID, core.EntityDocument, title, 0)}
	for i := 1; i <= n; i++ {
		records = append(records, Record(fmt.Sprintf("%s-b%d", docID, i), docID, "block", fmt.Sprintf("%s %d", prefix, i), int64(i)))
	}
	return records
}

// CreateSpace writes a managed index for spaceID in dir.
func CreateSpace(tb testing.TB, dir, spaceID string, records []storage.Record) storage.Space {
	tb.Helper()
	path := filepath.Join(dir, storage.IndexFileName(spaceID))
	idx, err := storage.Create(path, spaceID)
	if err != nil {
		tb.Fatalf("creating space %s: %v", spaceID, err)
	}
	defer idx.Close()
	if err := idx.StoreRecords(records); err != nil {
		tb.Fatalf("storing records in %s: %v", spaceID, err)
	}
	return storage.Space{ID: spaceID, Path: path}
}

// AppendRecords writes more records into an existing managed space.
func AppendRecords(tb testing.TB, space storage.Space, records []storage.Record) {
	tb.Helper()
	idx, err := storage.Create(space.Path, space.ID)
	if err != nil {
		tb.Fatalf("reopening space %s: %v", space.ID, err)
	}
	defer idx.Close()
	if err := idx.StoreRecords(records); err != nil {
		tb.Fatalf("storing records in %s: %v", space.ID, err)
	}
}

// WriteCorruptSpace writes a file that looks like an index but is not a database.
func WriteCorruptSpace(tb testing.TB, dir, spaceID string) storage.Space {
	tb.Helper()
	path := filepath.Join(dir, storage.IndexFileName(spaceID))
	if err := os.WriteFile(path, []byte("this is not a sqlite database, just some text padding it out"), 0644); err != nil {
		tb.Fatal(err)
	}
	return storage.Space{ID: spaceID, Path: path}
}

// OpenService discovers the spaces in dir and builds a search service over
// them. Spaces that fail to open are part of the service as failed spaces.
func OpenService(tb testing.TB, dir string, settings search.Settings) (*storage.Manager, *search.Service) {
	tb.Helper()
	spaces, err := storage.DiscoverSpaces(dir)
	if err != nil {
		tb.Fatalf("discovering spaces: %v", err)
	}
	mgr := storage.NewManager()
	if err := mgr.Open(spaces); err != nil {
		tb.Fatalf("opening spaces: %v", err)
	}
	tb.Cleanup(func() { mgr.Close() })

	var indexes []search.Index
	for _, h := range mgr.Handles() {
		indexes = append(indexes, h)
	}
	return mgr, search.NewService(search.SearchContext{Indexes: indexes, Settings: settings})
}
