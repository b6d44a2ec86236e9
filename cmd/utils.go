package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rubiojr/craftsearch/pkg/config"
	"github.com/rubiojr/craftsearch/pkg/log"
	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

var logger = log.ForService("cmd")

// openSpaces opens the configured spaces read-only. Spaces that cannot be opened
// are skipped and remembered by the manager.
func openSpaces(cfg *config.Config) (*storage.Manager, error) {
	spaces, err := cfg.ResolveSpaces()
	if err != nil {
		return nil, fmt.Errorf("resolving spaces: %w", err)
	}

	mgr := storage.NewManager()
	if err := mgr.Open(spaces); err != nil {
		mgr.Close()
		if errors.Is(err, storage.ErrNoSpaces) {
			return nil, fmt.Errorf("%w in %s (set index_dir or add [[spaces]] to the config)", err, cfg.IndexDir)
		}
		return nil, err
	}
	logger.Debugf("opened %d of %d spaces", len(mgr.Indexes()), len(spaces))
	return mgr, nil
}

// newService builds a search service over every space of mgr. Spaces that
// failed to open stay in the results as failed spaces.
func newService(mgr *storage.Manager, settings search.Settings) *search.Service {
	handles := mgr.Handles()
	indexes := make([]search.Index, len(handles))
	for i, h := range handles {
		indexes[i] = h
	}
	return search.NewService(search.SearchContext{Indexes: indexes, Settings: settings})
}

// spaceNames maps space ids to their configured names.
func spaceNames(spaces []storage.Space) map[string]string {
	names := make(map[string]string, len(spaces))
	for _, s := range spaces {
		if s.Name != "" {
			names[s.ID] = s.Name
		}
	}
	return names
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
