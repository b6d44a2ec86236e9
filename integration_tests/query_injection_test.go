package integration_tests

import (
	"context"
	"strings"
	"testing"

	"github.com/rubiojr/craftsearch/pkg/core"
	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

func TestHostileQueriesCannotEscapeTheMatchExpression(t *testing.T) {
	dir := t.TempDir()
	space := CreateSpace(t, dir, "space", []storage.Record{
		Record("d1", "d1", core.EntityDocument, "Secrets", 0),
		Record("1", "d1", "block", "sensitive user data", 1),
		Record("2", "d1", "block", "password: secret123", 2),
		Record("3", "d1", "block", "admin configuration", 3),
		Record("4", "d1", "block", "DROP TABLE users", 4),
		Record("5", "d1", "block", "normal content", 5),
	})

	settings := search.DefaultSettings()
	settings.CacheSize = 0
	_, svc := OpenService(t, dir, settings)

	queries := []string{
		"'; DROP TABLE BlockSearch; --",
		"' UNION SELECT * FROM sqlite_master; --",
		`") OR 1=1 --`,
		`content:password`,
		`secret* OR admin`,
		`NEAR(password admin)`,
		`"unterminated`,
		`{content} : password`,
		`\" OR \"`,
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			res, err := svc.Search(context.Background(), q)
			if err != nil {
				t.Fatalf("Search(%q): %v", q, err)
			}
			for _, b := range res.Blocks {
				// Every hit must contain one of the query's words; nothing may
				// come back just because of operators smuggled into the query.
				if !containsAnyWord(b.Content, q) {
					t.Errorf("query %q returned unrelated block %q", q, b.Content)
				}
			}
		})
	}

	idx, err := storage.Open(space.Path, space.ID)
	if err != nil {
		t.Fatalf("reopening index: %v", err)
	}
	defer idx.Close()
	n, err := idx.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 6 {
		t.Errorf("index modified: %d rows", n)
	}
}

func TestQuotedTokensStillMatch(t *testing.T) {
	dir := t.TempDir()
	CreateSpace(t, dir, "space", []storage.Record{
		Record("d1", "d1", core.EntityDocument, "Notes", 0),
		Record("1", "d1", "block", "say hello world", 1),
	})
	_, svc := OpenService(t, dir, search.DefaultSettings())

	res, err := svc.Search(context.Background(), `"hello" "world`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Blocks) != 1 || res.Blocks[0].ID != "1" {
		t.Errorf("expected quoted query to match, got %+v", res.Blocks)
	}
}

func containsAnyWord(content, query string) bool {
	content = strings.ToLower(content)
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) > 0 && strings.Contains(content, w) {
			return true
		}
	}
	return false
}
