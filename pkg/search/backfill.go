package search

import (
	"context"

	"github.com/rubiojr/craftsearch/pkg/core"
)

// backfillTitles replaces placeholder headers with the document rows looked up
// from idx. On lookup failure the placeholders are kept.
func (s *Service) backfillTitles(ctx context.Context, idx Index, groups []core.DocumentGroup) []core.DocumentGroup {
	lookup, ok := idx.(HeaderLookup)
	if !ok {
		return groups
	}

	var missing []string
	for _, g := range groups {
		if g.Placeholder() {
			missing = append(missing, g.DocumentID)
		}
	}
	if len(missing) == 0 {
		return groups
	}

	headers, err := withTimeout(ctx, s.sc.Settings.SpaceTimeout, func(ctx context.Context) ([]core.Block, error) {
		return lookup.Headers(ctx, missing)
	})
	if err != nil {
		logger.Warnf("backfilling %d titles in space %s: %v", len(missing), idx.SpaceID(), err)
		return groups
	}

	byDocument := make(map[string]core.Block, len(headers))
	for _, h := range headers {
		if h.IsDocument() {
			byDocument[documentKey(h)] = h
		}
	}
	for i := range groups {
		if !groups[i].Placeholder() {
			continue
		}
		if h, ok := byDocument[groups[i].DocumentID]; ok {
			groups[i].Header = h
		}
	}
	return groups
}
