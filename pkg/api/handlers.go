package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	s.handleResolve(w, r, search.ModeBlocks)
}

func (s *Server) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	s.handleResolve(w, r, search.ModeDocuments)
}

// handleResolve searches for the q parameter. An empty q lists the
// highest ranked blocks of every space.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request, mode search.Mode) {
	q := r.URL.Query().Get("q")

	res, err := s.svc.Resolve(r.Context(), mode, q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, NewResultsResponse(res))
}

func (s *Server) HandleSpaces(w http.ResponseWriter, r *http.Request) {
	infos := NewSpaceInfos(s.spaceStates())
	s.writeJSON(w, http.StatusOK, ListSpacesResponse{Spaces: infos, Count: len(infos)})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	available := 0
	for _, st := range s.spaceStates() {
		if st.Available {
			available++
		}
	}
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Spaces:    available,
	}

	s.writeJSON(w, http.StatusOK, health)
}
