package search

import (
	"context"
	"time"

	"github.com/rubiojr/craftsearch/pkg/core"
)

// Index is the search index of one space. *storage.Index implements it.
type Index interface {
	SpaceID() string
	Search(ctx context.Context, match string, limit int) ([]core.Block, error)
}

// HeaderLookup is implemented by indexes that can fetch document rows by id.
// It is used to fill in titles for groups whose document row fell outside the
// result limit.
type HeaderLookup interface {
	Headers(ctx context.Context, documentIDs []string) ([]core.Block, error)
}

// Settings tune how a Service searches.
type Settings struct {
	// Limit caps the rows fetched from each space.
	Limit int
	// SpaceTimeout bounds each space's query. Zero disables the timeout.
	SpaceTimeout time.Duration
	// MaxParallel limits concurrently searched spaces. Zero means no limit.
	MaxParallel int
	// BackfillTitles looks up missing document headers in document mode.
	BackfillTitles bool
	// CacheSize is the number of per-space results kept. Zero disables caching.
	CacheSize int
	// CacheTTL expires cached results. Zero keeps them until evicted or purged.
	CacheTTL time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Limit:          40,
		SpaceTimeout:   2 * time.Second,
		BackfillTitles: true,
		CacheSize:      256,
		CacheTTL:       30 * time.Second,
	}
}

// SearchContext holds everything a Service needs for one command invocation:
// the space indexes, in presentation order, and the settings.
type SearchContext struct {
	Indexes  []Index
	Settings Settings
}
