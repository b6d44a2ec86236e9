// Package realtime is an in-process publish/subscribe hub that fans index
// change notifications out to live search sessions.
//
// Delivery is best effort: a listener whose buffer is full misses the event.
// Sessions only need to know that something changed since their last search,
// so a dropped event is recovered by the next one.
package realtime

import (
	"sync"
	"time"
)

// EventIndexChanged is the type of events reporting index changes.
const EventIndexChanged = "index_changed"

// IndexEvent reports that the search indexes of some spaces changed.
type IndexEvent struct {
	SpaceIDs []string  `json:"spaceIds"`
	At       time.Time `json:"at"`
}

// Event is the envelope delivered to listeners.
type Event struct {
	Type  string     `json:"type"`
	Index IndexEvent `json:"index,omitempty"`
}

// Hub is an in-memory fan-out dispatcher. Each registered listener receives
// events via its own buffered channel. The hub is concurrency-safe.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 8 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 8
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a new listener. Callers must Unregister the returned id.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener that has room for it and returns
// how many received it.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// IndexChanged broadcasts an EventIndexChanged for spaceIDs.
func (h *Hub) IndexChanged(spaceIDs []string, at time.Time) int {
	return h.Broadcast(Event{Type: EventIndexChanged, Index: IndexEvent{SpaceIDs: spaceIDs, At: at}})
}

// Size returns the current number of listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
