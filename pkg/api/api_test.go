package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/craftsearch/pkg/core"
	"github.com/rubiojr/craftsearch/pkg/realtime"
	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

type brokenIndex struct{ id string }

func (b brokenIndex) SpaceID() string { return b.id }

func (b brokenIndex) Search(ctx context.Context, match string, limit int) ([]core.Block, error) {
	return nil, errors.New("file is not a database")
}

func record(id, docID, entityType, content string, rank int64) storage.Record {
	return storage.Record{
		Block:      core.Block{ID: id, DocumentID: docID, EntityType: entityType, Content: content},
		CustomRank: rank,
	}
}

// newTestIndexes creates two spaces, "work" and "home", each with one document
// and one block mentioning "search".
func newTestIndexes(t *testing.T) ([]*storage.Index, []storage.Space) {
	t.Helper()
	dir := t.TempDir()
	fixtures := map[string][]storage.Record{
		"work": {
			record("w-d1", "w-d1", core.EntityDocument, "Roadmap", 1),
			record("w-b1", "w-d1", "block", "ship the search feature", 2),
		},
		"home": {
			record("h-d1", "h-d1", core.EntityDocument, "Groceries", 1),
			record("h-b1", "h-d1", "block", "search for fresh basil", 2),
		},
	}

	var indexes []*storage.Index
	var spaces []storage.Space
	for _, id := range []string{"work", "home"} {
		path := filepath.Join(dir, storage.IndexFileName(id))
		idx, err := storage.Create(path, id)
		if err != nil {
			t.Fatalf("creating index: %v", err)
		}
		if err := idx.StoreRecords(fixtures[id]); err != nil {
			t.Fatalf("storing records: %v", err)
		}
		t.Cleanup(func() { idx.Close() })
		indexes = append(indexes, idx)
		spaces = append(spaces, storage.Space{ID: id, Name: id, Path: path})
	}
	return indexes, spaces
}

func newTestServer(t *testing.T, debounce time.Duration, extra ...search.Index) (*Server, *httptest.Server) {
	t.Helper()
	indexes, spaces := newTestIndexes(t)

	var all []search.Index
	for _, idx := range indexes {
		all = append(all, idx)
	}
	all = append(all, extra...)

	mgr := storage.NewManager()
	gone := storage.Space{ID: "gone", Path: filepath.Join(t.TempDir(), storage.IndexFileName("gone"))}
	if err := mgr.Open(append(spaces, gone)); err != nil {
		t.Fatalf("opening spaces: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	svc := search.NewService(search.SearchContext{Indexes: all, Settings: search.DefaultSettings()})
	srv := NewServer(svc, Options{
		Manager:  mgr,
		Hub:      realtime.NewHub(4),
		Debounce: debounce,
	})

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(CorsMiddleware(mux))
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode
}

func TestHandleSearch(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var res ResultsResponse
	if status := getJSON(t, ts.URL+"/api/search?q=search", &res); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}

	if res.Mode != search.ModeBlocks || res.Count != 2 || res.Partial {
		t.Errorf("unexpected response %+v", res)
	}
	if len(res.Blocks) != 2 || res.Blocks[0].ID != "w-b1" || res.Blocks[1].ID != "h-b1" {
		t.Errorf("unexpected blocks %+v", res.Blocks)
	}
	if res.Blocks[1].SpaceID != "home" {
		t.Errorf("expected space id on block, got %q", res.Blocks[1].SpaceID)
	}
	if res.Match != `{content exactMatchContent} : (("search") OR ("search*"))` {
		t.Errorf("unexpected match %q", res.Match)
	}
	if len(res.Spaces) != 2 || res.Spaces[0].SpaceID != "work" || res.Spaces[0].Count != 1 {
		t.Errorf("unexpected spaces %+v", res.Spaces)
	}
}

func TestHandleSearchEmptyQueryListsTopBlocks(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var res ResultsResponse
	getJSON(t, ts.URL+"/api/search", &res)
	if res.Match != "" || res.Count != 4 {
		t.Errorf("expected default listing of 4 blocks, got match=%q count=%d", res.Match, res.Count)
	}
	if res.Blocks[0].ID != "w-d1" || res.Blocks[2].ID != "h-d1" {
		t.Errorf("unexpected order %+v", res.Blocks)
	}
}

func TestHandleSearchNoMatches(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var raw map[string]any
	getJSON(t, ts.URL+"/api/search?q=zebra", &raw)
	blocks, ok := raw["blocks"].([]any)
	if !ok || len(blocks) != 0 {
		t.Errorf("expected empty blocks array, got %v", raw["blocks"])
	}
	if raw["partial"] != false {
		t.Errorf("expected complete results, got %v", raw["partial"])
	}
}

func TestHandleSearchPartialFailure(t *testing.T) {
	_, ts := newTestServer(t, 0, brokenIndex{id: "broken"})

	var res ResultsResponse
	getJSON(t, ts.URL+"/api/search?q=search", &res)
	if !res.Partial || res.Count != 2 {
		t.Fatalf("expected partial results with 2 blocks, got %+v", res)
	}
	last := res.Spaces[2]
	if last.SpaceID != "broken" || last.Error == "" || last.TimedOut {
		t.Errorf("unexpected failed space %+v", last)
	}
}

func TestHandleDocuments(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var res ResultsResponse
	getJSON(t, ts.URL+"/api/documents?q=search", &res)
	if res.Mode != search.ModeDocuments || len(res.Documents) != 2 || len(res.Blocks) != 0 {
		t.Fatalf("unexpected response %+v", res)
	}
	first := res.Documents[0]
	if first.DocumentID != "w-d1" || first.Header.Content != "Roadmap" || len(first.Children) != 1 {
		t.Errorf("unexpected first document %+v", first)
	}
	if res.Documents[1].SpaceID != "home" || res.Documents[1].Header.Content != "Groceries" {
		t.Errorf("unexpected second document %+v", res.Documents[1])
	}
}

func TestHandleSpaces(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var res ListSpacesResponse
	getJSON(t, ts.URL+"/api/spaces", &res)
	if res.Count != 3 || len(res.Spaces) != 3 {
		t.Fatalf("unexpected spaces %+v", res)
	}
	if res.Spaces[0].ID != "work" || !res.Spaces[0].Available {
		t.Errorf("unexpected first space %+v", res.Spaces[0])
	}
	if res.Spaces[2].ID != "gone" || res.Spaces[2].Available || res.Spaces[2].Error == "" {
		t.Errorf("unexpected failed space %+v", res.Spaces[2])
	}
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t, 0)

	var res HealthResponse
	if status := getJSON(t, ts.URL+"/health", &res); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if res.Status != "ok" || res.Spaces != 2 || res.Version == "" {
		t.Errorf("unexpected health %+v", res)
	}
	if time.Since(res.Timestamp) > time.Minute {
		t.Errorf("stale timestamp %v", res.Timestamp)
	}
}

func TestCorsPreflight(t *testing.T) {
	_, ts := newTestServer(t, 0)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/search", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("unexpected preflight response %d %v", resp.StatusCode, resp.Header)
	}
}

func TestNotifyIndexChangedPurgesCache(t *testing.T) {
	srv, ts := newTestServer(t, 0)

	var res ResultsResponse
	getJSON(t, ts.URL+"/api/search?q=search", &res)
	getJSON(t, ts.URL+"/api/search?q=search", &res)
	if !res.Spaces[0].Cached {
		t.Fatal("expected second search to be cached")
	}

	srv.NotifyIndexChanged([]string{"work"}, time.Now())
	getJSON(t, ts.URL+"/api/search?q=search", &res)
	if res.Spaces[0].Cached {
		t.Error("expected cache to be purged")
	}
}

func TestNotifyIndexChangedReopensFailedSpace(t *testing.T) {
	srv, ts := newTestServer(t, 0)

	var gone storage.Space
	for _, sp := range srv.mgr.Spaces() {
		if sp.ID == "gone" {
			gone = sp
		}
	}
	idx, err := storage.Create(gone.Path, gone.ID)
	if err != nil {
		t.Fatalf("creating index: %v", err)
	}
	if err := idx.StoreRecords([]storage.Record{record("g-d1", "g-d1", core.EntityDocument, "Found", 1)}); err != nil {
		t.Fatal(err)
	}
	idx.Close()

	srv.NotifyIndexChanged([]string{"gone"}, time.Now())

	var res ListSpacesResponse
	getJSON(t, ts.URL+"/api/spaces", &res)
	if len(res.Spaces) != 3 || res.Spaces[2].ID != "gone" || !res.Spaces[2].Available || res.Spaces[2].Error != "" {
		t.Errorf("expected gone to be available, got %+v", res.Spaces)
	}

	var health HealthResponse
	getJSON(t, ts.URL+"/health", &health)
	if health.Spaces != 3 {
		t.Errorf("expected 3 available spaces, got %d", health.Spaces)
	}
}
