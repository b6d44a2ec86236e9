package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/craftsearch/pkg/log"
	"github.com/rubiojr/craftsearch/pkg/realtime"
	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

var logger = log.ForService("api")

// Options configures a Server.
type Options struct {
	// Manager reports which spaces are open and reopens failed spaces when
	// their index changes. Optional.
	Manager *storage.Manager
	// Hub delivers index change events to WebSocket sessions. Optional.
	Hub *realtime.Hub
	// Debounce delays WebSocket searches until typing pauses.
	Debounce time.Duration
}

type Server struct {
	svc      *search.Service
	mgr      *storage.Manager
	hub      *realtime.Hub
	debounce time.Duration
	upgrader websocket.Upgrader
}

func NewServer(svc *search.Service, opts Options) *Server {
	return &Server{
		svc:      svc,
		mgr:      opts.Manager,
		hub:      opts.Hub,
		debounce: opts.Debounce,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			// The API is served on loopback and answers any local origin, as the
			// CORS middleware does for plain requests.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// NotifyIndexChanged retries spaces that failed to open, drops cached results
// and tells live sessions to refresh.
func (s *Server) NotifyIndexChanged(spaceIDs []string, at time.Time) {
	if s.mgr != nil {
		if reopened := s.mgr.Reopen(spaceIDs); len(reopened) > 0 {
			logger.Infof("reopened %d space(s): %v", len(reopened), reopened)
		}
	}
	s.svc.InvalidateCache()
	if s.hub != nil {
		n := s.hub.IndexChanged(spaceIDs, at)
		logger.Debugf("index change for %v delivered to %d session(s)", spaceIDs, n)
	}
}

// spaceStates returns the state of every space, or nil without a manager.
func (s *Server) spaceStates() []storage.SpaceState {
	if s.mgr == nil {
		return nil
	}
	return s.mgr.States()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warnf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
