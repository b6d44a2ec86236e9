package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rubiojr/craftsearch/pkg/core"
)

// ErrNoSpaces is returned when no space index could be opened.
var ErrNoSpaces = errors.New("no space search indexes available")

const (
	indexPrefix = "SearchIndex_"
	indexSuffix = ".sqlite"
)

// Space identifies one space and the index file holding its blocks.
type Space struct {
	ID   string
	Name string
	Path string
}

// IndexFileName returns the file name Craft uses for a space's index.
func IndexFileName(spaceID string) string {
	return indexPrefix + spaceID + indexSuffix
}

// DiscoverSpaces lists the space indexes in dir, sorted by file name.
func DiscoverSpaces(dir string) ([]Space, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading index directory %s: %w", dir, err)
	}

	var spaces []Space
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, indexPrefix) || !strings.HasSuffix(name, indexSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, indexPrefix), indexSuffix)
		if id == "" {
			continue
		}
		spaces = append(spaces, Space{ID: id, Path: filepath.Join(dir, name)})
	}

	sort.Slice(spaces, func(i, j int) bool {
		return filepath.Base(spaces[i].Path) < filepath.Base(spaces[j].Path)
	})
	return spaces, nil
}

// Manager owns the indexes of one command invocation. Spaces keep the order
// they were given to Open in; that order is the order results are presented in.
// A space that could not be opened keeps its position and can be retried with
// Reopen.
type Manager struct {
	mu       sync.RWMutex
	resolved []Space
	indexes  map[string]*Index
	failed   map[string]error
}

// SpaceState is a space and whether its index is open.
type SpaceState struct {
	Space
	Available bool
	Err       error
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		indexes: make(map[string]*Index),
		failed:  make(map[string]error),
	}
}

// Open opens every space read-only. Spaces that cannot be opened are logged and
// remembered in Failed; ErrNoSpaces is returned when none could be opened.
func (m *Manager) Open(spaces []Space) error {
	for _, space := range spaces {
		idx, err := Open(space.Path, space.ID)

		m.mu.Lock()
		m.resolved = append(m.resolved, space)
		if err != nil {
			m.failed[space.ID] = err
		} else {
			m.indexes[space.ID] = idx
		}
		m.mu.Unlock()

		if err != nil {
			logger.Warnf("space %s unavailable: %v", space.ID, err)
		}
	}

	if len(m.Indexes()) == 0 {
		return ErrNoSpaces
	}
	return nil
}

// Reopen retries the failed spaces among spaceIDs and returns the ids of the
// ones that opened.
func (m *Manager) Reopen(spaceIDs []string) []string {
	var opened []string
	for _, id := range spaceIDs {
		space, ok := m.failedSpace(id)
		if !ok {
			continue
		}
		idx, err := Open(space.Path, space.ID)
		if err != nil {
			logger.Debugf("space %s still unavailable: %v", id, err)
			m.mu.Lock()
			m.failed[id] = err
			m.mu.Unlock()
			continue
		}

		m.mu.Lock()
		if _, open := m.indexes[id]; open {
			m.mu.Unlock()
			idx.Close()
			continue
		}
		m.indexes[id] = idx
		delete(m.failed, id)
		m.mu.Unlock()

		logger.Infof("space %s is available again", id)
		opened = append(opened, id)
	}
	return opened
}

func (m *Manager) failedSpace(id string) (Space, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.failed[id]; !ok {
		return Space{}, false
	}
	for _, s := range m.resolved {
		if s.ID == id {
			return s, true
		}
	}
	return Space{}, false
}

// Indexes returns the open indexes in order.
func (m *Manager) Indexes() []*Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Index
	for _, s := range m.resolved {
		if idx, ok := m.indexes[s.ID]; ok {
			out = append(out, idx)
		}
	}
	return out
}

// Spaces returns every space given to Open, available or not, in order.
func (m *Manager) Spaces() []Space {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Space, len(m.resolved))
	copy(out, m.resolved)
	return out
}

// States returns every space in order along with whether its index is open.
func (m *Manager) States() []SpaceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SpaceState, len(m.resolved))
	for i, s := range m.resolved {
		_, ok := m.indexes[s.ID]
		out[i] = SpaceState{Space: s, Available: ok, Err: m.failed[s.ID]}
	}
	return out
}

// Handles returns a search handle for every space in order. A handle resolves
// its index on each call, so a space reopened later is picked up.
func (m *Manager) Handles() []*Handle {
	spaces := m.Spaces()
	out := make([]*Handle, len(spaces))
	for i, s := range spaces {
		out[i] = &Handle{m: m, spaceID: s.ID}
	}
	return out
}

// Get returns the index of a space.
func (m *Manager) Get(spaceID string) (*Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[spaceID]
	return idx, ok
}

// Failed returns the spaces that could not be opened and why.
func (m *Manager) Failed() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]error, len(m.failed))
	for k, v := range m.failed {
		out[k] = v
	}
	return out
}

// Close closes every index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, s := range m.resolved {
		idx, ok := m.indexes[s.ID]
		if !ok {
			continue
		}
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing index %s: %w", s.ID, err))
		}
	}
	m.indexes = make(map[string]*Index)
	return errors.Join(errs...)
}

// errClosed is reported by handles after the manager is closed.
var errClosed = errors.New("index closed")

// Handle searches one space through its Manager.
type Handle struct {
	m       *Manager
	spaceID string
}

// SpaceID returns the id of the space.
func (h *Handle) SpaceID() string { return h.spaceID }

func (h *Handle) index() (*Index, error) {
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	if idx, ok := h.m.indexes[h.spaceID]; ok {
		return idx, nil
	}
	if err, ok := h.m.failed[h.spaceID]; ok {
		return nil, err
	}
	return nil, errClosed
}

// Search runs Index.Search on the space, or returns the reason its index is not open.
func (h *Handle) Search(ctx context.Context, match string, limit int) ([]core.Block, error) {
	idx, err := h.index()
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, match, limit)
}

// Headers runs Index.Headers on the space.
func (h *Handle) Headers(ctx context.Context, documentIDs []string) ([]core.Block, error) {
	idx, err := h.index()
	if err != nil {
		return nil, err
	}
	return idx.Headers(ctx, documentIDs)
}
