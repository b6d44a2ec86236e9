// Package watch notices when Craft rewrites a space's search index so cached
// results can be dropped and live searches refreshed.
//
// SQLite rewrites an index through its journal or WAL files and Craft may
// replace the database file altogether, so the watcher observes the directories
// that hold the indexes rather than the files themselves and maps every event
// back to the space that owns the file.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rubiojr/craftsearch/pkg/log"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

var logger = log.ForService("watch")

// DefaultQuiet is how long the watcher waits for an index to stop changing
// before reporting it.
const DefaultQuiet = 250 * time.Millisecond

// sidecars are the files SQLite writes next to a database.
var sidecars = []string{"", "-wal", "-journal", "-shm"}

// Change lists the spaces whose index changed during one quiet period, in the
// order the spaces were given to New.
type Change struct {
	SpaceIDs []string
	At       time.Time
}

// Watcher reports index changes for a fixed set of spaces.
type Watcher struct {
	fw       *fsnotify.Watcher
	owners   map[string]string // file path -> space id
	order    map[string]int
	quiet    time.Duration
	onChange func(Change)

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// New watches the index files of spaces. onChange is called from a timer
// goroutine once a burst of writes has settled for quiet. A quiet of zero uses
// DefaultQuiet.
func New(spaces []storage.Space, quiet time.Duration, onChange func(Change)) (*Watcher, error) {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating index watcher: %w", err)
	}

	w := &Watcher{
		fw:       fw,
		owners:   make(map[string]string),
		order:    make(map[string]int),
		quiet:    quiet,
		onChange: onChange,
		pending:  make(map[string]bool),
	}

	dirs := make(map[string]bool)
	for i, s := range spaces {
		path, err := filepath.Abs(s.Path)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolving index path %s: %w", s.Path, err)
		}
		for _, suffix := range sidecars {
			w.owners[path+suffix] = s.ID
		}
		w.order[s.ID] = i

		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
		logger.Debugf("watching %s", dir)
	}

	return w, nil
}

// Run delivers changes until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()
		case event, ok := <-w.fw.Events:
			if !ok {
				w.stopTimer()
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				w.stopTimer()
				return nil
			}
			logger.Warnf("index watcher error: %v", err)
		}
	}
}

// Close stops watching. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	// Chmod alone never changes the data.
	if event.Op == fsnotify.Chmod {
		return
	}

	spaceID, ok := w.owners[filepath.Clean(event.Name)]
	if !ok {
		return
	}
	logger.Debugf("%s changed (%s)", event.Name, event.Op)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[spaceID] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quiet, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	ids := make([]string, len(w.order))
	n := 0
	for id := range w.pending {
		ids[w.order[id]] = id
		n++
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	w.mu.Unlock()

	changed := make([]string, 0, n)
	for _, id := range ids {
		if id != "" {
			changed = append(changed, id)
		}
	}
	logger.Infof("index changed for %d space(s)", len(changed))
	if w.onChange != nil {
		w.onChange(Change{SpaceIDs: changed, At: time.Now()})
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
