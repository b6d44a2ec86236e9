package integration_tests

import (
	"context"
	"errors"
	"testing"

	"github.com/rubiojr/craftsearch/pkg/search"
)

func TestMultipleSpacesKeepDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	// Created out of order on purpose; discovery sorts by file name.
	CreateSpace(t, dir, "c-space", Document("c-doc", "Gamma", "shared term", 2))
	CreateSpace(t, dir, "a-space", Document("a-doc", "Alpha", "shared term", 3))
	CreateSpace(t, dir, "b-space", Document("b-doc", "Beta", "shared term", 1))

	_, svc := OpenService(t, dir, search.DefaultSettings())

	res, err := svc.Search(context.Background(), "shared")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Blocks) != 6 {
		t.Fatalf("expected 6 blocks, got %d", len(res.Blocks))
	}

	var order []string
	for _, b := range res.Blocks {
		if len(order) == 0 || order[len(order)-1] != b.SpaceID {
			order = append(order, b.SpaceID)
		}
	}
	want := []string{"a-space", "b-space", "c-space"}
	if len(order) != len(want) {
		t.Fatalf("blocks interleaved across spaces: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("space %d = %s, want %s", i, order[i], want[i])
		}
	}

	docs, err := svc.Documents(context.Background(), "shared")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	titles := []string{}
	for _, g := range docs.Documents {
		titles = append(titles, g.Title())
	}
	if len(titles) != 3 || titles[0] != "Alpha" || titles[1] != "Beta" || titles[2] != "Gamma" {
		t.Errorf("unexpected document titles %v", titles)
	}
}

func TestCorruptSpaceIsReportedAsPartial(t *testing.T) {
	dir := t.TempDir()
	CreateSpace(t, dir, "a-space", Document("a-doc", "Alpha", "needle", 1))
	WriteCorruptSpace(t, dir, "b-broken")
	CreateSpace(t, dir, "c-space", Document("c-doc", "Gamma", "needle", 1))

	mgr, svc := OpenService(t, dir, search.DefaultSettings())

	if _, ok := mgr.Failed()["b-broken"]; !ok {
		t.Fatalf("expected b-broken to fail opening, failed=%v", mgr.Failed())
	}
	ids := svc.SpaceIDs()
	if len(ids) != 3 || ids[0] != "a-space" || ids[1] != "b-broken" || ids[2] != "c-space" {
		t.Fatalf("unexpected spaces %v", ids)
	}

	res, err := svc.Search(context.Background(), "needle")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Blocks) != 2 {
		t.Errorf("expected the healthy spaces' 2 blocks, got %d", len(res.Blocks))
	}
	if !res.Partial() {
		t.Error("a space that failed to open must make the results partial")
	}
	failed := res.FailedSpaces()
	if len(failed) != 1 || failed[0].SpaceID != "b-broken" {
		t.Fatalf("expected b-broken to be reported, got %+v", failed)
	}
	var unavailable *search.IndexUnavailableError
	if !errors.As(failed[0].Err, &unavailable) || unavailable.TimedOut() {
		t.Errorf("expected an unavailable index error, got %v", failed[0].Err)
	}
	if res.Spaces[1].SpaceID != "b-broken" {
		t.Errorf("failed space lost its position: %+v", res.Spaces)
	}
}

func TestLimitAppliesPerSpace(t *testing.T) {
	dir := t.TempDir()
	CreateSpace(t, dir, "a-space", Document("a-doc", "Alpha", "many rows", 30))
	CreateSpace(t, dir, "b-space", Document("b-doc", "Beta", "many rows", 30))

	settings := search.DefaultSettings()
	settings.Limit = 5
	_, svc := OpenService(t, dir, settings)

	res, err := svc.Search(context.Background(), "rows")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Blocks) != 10 {
		t.Errorf("expected 5 blocks from each space, got %d", len(res.Blocks))
	}
	for _, s := range res.Spaces {
		if s.Count != 5 {
			t.Errorf("space %s returned %d rows", s.SpaceID, s.Count)
		}
	}
}
