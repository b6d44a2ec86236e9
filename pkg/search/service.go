// Package search runs a user's query against every space and assembles the
// results.
//
// A Service searches all spaces of its SearchContext concurrently, each under its
// own timeout. A space that fails or times out contributes no rows and its error
// is reported in Results.Spaces; the other spaces are unaffected. Per-space results
// are concatenated in the order of SearchContext.Indexes regardless of which space
// answered first.
//
// Two result shapes are offered: a flat list of blocks (ModeBlocks) and blocks
// grouped under their documents (ModeDocuments).
package search

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rubiojr/craftsearch/pkg/core"
	"github.com/rubiojr/craftsearch/pkg/log"
	"github.com/rubiojr/craftsearch/pkg/query"
)

var logger = log.ForService("search")

// Mode selects the shape of the results.
type Mode string

const (
	ModeBlocks    Mode = "blocks"
	ModeDocuments Mode = "documents"
)

// ParseMode parses a mode name. The empty string selects ModeBlocks.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBlocks:
		return ModeBlocks, nil
	case ModeDocuments:
		return ModeDocuments, nil
	}
	return "", fmt.Errorf("unknown search mode %q", s)
}

// SpaceResult describes what one space contributed to a search.
type SpaceResult struct {
	SpaceID  string        `json:"spaceId"`
	Count    int           `json:"count"`
	Cached   bool          `json:"cached"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Failed reports whether the space errored or timed out.
func (r SpaceResult) Failed() bool { return r.Err != nil }

// Results of one search. Only one of Blocks or Documents is populated,
// depending on Mode.
type Results struct {
	Query      string               `json:"query"`
	Match      string               `json:"match"`
	Mode       Mode                 `json:"mode"`
	Generation uint64               `json:"generation,omitempty"`
	Blocks     []core.Block         `json:"blocks,omitempty"`
	Documents  []core.DocumentGroup `json:"documents,omitempty"`
	Spaces     []SpaceResult        `json:"spaces"`
}

// Partial reports whether at least one space failed, which tells "no matches"
// apart from "some spaces could not be searched".
func (r *Results) Partial() bool {
	for _, s := range r.Spaces {
		if s.Failed() {
			return true
		}
	}
	return false
}

// FailedSpaces returns the spaces that contributed no results because of an error.
func (r *Results) FailedSpaces() []SpaceResult {
	var failed []SpaceResult
	for _, s := range r.Spaces {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Len returns the number of top level results.
func (r *Results) Len() int {
	if r.Mode == ModeDocuments {
		return len(r.Documents)
	}
	return len(r.Blocks)
}

// Service searches the spaces of a SearchContext.
type Service struct {
	sc    SearchContext
	cache *resultCache
}

// NewService creates a service for sc. Zero-valued settings fall back to
// DefaultSettings for Limit.
func NewService(sc SearchContext) *Service {
	if sc.Settings.Limit <= 0 {
		sc.Settings.Limit = DefaultSettings().Limit
	}
	return &Service{
		sc:    sc,
		cache: newResultCache(sc.Settings.CacheSize, sc.Settings.CacheTTL),
	}
}

// Settings returns the effective settings.
func (s *Service) Settings() Settings { return s.sc.Settings }

// SpaceIDs returns the searched spaces in result order.
func (s *Service) SpaceIDs() []string {
	ids := make([]string, len(s.sc.Indexes))
	for i, idx := range s.sc.Indexes {
		ids[i] = idx.SpaceID()
	}
	return ids
}

// InvalidateCache drops every cached result. Call it when an index changes.
func (s *Service) InvalidateCache() {
	s.cache.purge()
}

// Search returns matching blocks from every space as one flat list.
func (s *Service) Search(ctx context.Context, text string) (*Results, error) {
	return s.Resolve(ctx, ModeBlocks, text)
}

// Documents returns matching blocks grouped by document.
func (s *Service) Documents(ctx context.Context, text string) (*Results, error) {
	return s.Resolve(ctx, ModeDocuments, text)
}

// Resolve runs text against every space and assembles the results in the given mode.
// Space failures never make Resolve fail; it only returns an error when ctx itself
// is done.
func (s *Service) Resolve(ctx context.Context, mode Mode, text string) (*Results, error) {
	match := query.BuildMatch(text)
	indexes := s.sc.Indexes

	res := &Results{
		Query:  text,
		Match:  match,
		Mode:   mode,
		Spaces: make([]SpaceResult, len(indexes)),
	}
	blocks := make([][]core.Block, len(indexes))
	groups := make([][]core.DocumentGroup, len(indexes))

	var g errgroup.Group
	if s.sc.Settings.MaxParallel > 0 {
		g.SetLimit(s.sc.Settings.MaxParallel)
	}

	for i, idx := range indexes {
		g.Go(func() error {
			start := time.Now()
			found, cached, err := s.searchIndex(ctx, idx, match)
			sr := SpaceResult{SpaceID: idx.SpaceID(), Cached: cached}
			if err != nil {
				logger.Warnf("%v", err)
				sr.Err = err
				sr.Duration = time.Since(start)
				res.Spaces[i] = sr
				return nil
			}

			if mode == ModeDocuments {
				grouped := GroupByDocument(found, idx.SpaceID())
				if s.sc.Settings.BackfillTitles {
					grouped = s.backfillTitles(ctx, idx, grouped)
				}
				groups[i] = grouped
				sr.Count = len(grouped)
			} else {
				blocks[i] = found
				sr.Count = len(found)
			}
			sr.Duration = time.Since(start)
			res.Spaces[i] = sr
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range indexes {
		if mode == ModeDocuments {
			res.Documents = append(res.Documents, groups[i]...)
		} else {
			res.Blocks = append(res.Blocks, blocks[i]...)
		}
	}

	logger.Debugf("query %q (%s) returned %d results from %d spaces", text, mode, res.Len(), len(indexes))
	return res, nil
}

func (s *Service) searchIndex(ctx context.Context, idx Index, match string) ([]core.Block, bool, error) {
	limit := s.sc.Settings.Limit
	key := cacheKey(idx.SpaceID(), match, limit)
	if blocks, ok := s.cache.get(key); ok {
		return blocks, true, nil
	}
	epoch := s.cache.currentEpoch()

	blocks, err := withTimeout(ctx, s.sc.Settings.SpaceTimeout, func(ctx context.Context) ([]core.Block, error) {
		return idx.Search(ctx, match, limit)
	})
	if err != nil {
		return nil, false, &IndexUnavailableError{SpaceID: idx.SpaceID(), Err: err}
	}

	if s.cache != nil && !s.cache.add(key, blocks, epoch) {
		logger.Debugf("not caching results for space %s: cache purged during search", idx.SpaceID())
	}
	return blocks, false, nil
}

// withTimeout runs fn and gives up once d elapses, even if fn ignores its
// context. An abandoned call finishes in the background and its result is dropped.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(tctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-tctx.Done():
		var zero T
		return zero, tctx.Err()
	}
}
