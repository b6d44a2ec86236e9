package api

import (
	"errors"
	"time"

	"github.com/rubiojr/craftsearch/pkg/core"
	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SpaceStatus is one space's share of a search.
type SpaceStatus struct {
	SpaceID    string `json:"space_id"`
	Count      int    `json:"count"`
	Cached     bool   `json:"cached"`
	DurationMs int64  `json:"duration_ms"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ResultsResponse struct {
	Query      string               `json:"query"`
	Match      string               `json:"match"`
	Mode       search.Mode          `json:"mode"`
	Generation uint64               `json:"generation,omitempty"`
	Count      int                  `json:"count"`
	Partial    bool                 `json:"partial"`
	Blocks     []core.Block         `json:"blocks,omitempty"`
	Documents  []core.DocumentGroup `json:"documents,omitempty"`
	Spaces     []SpaceStatus        `json:"spaces"`
}

// NewResultsResponse converts search results to their API form.
func NewResultsResponse(res *search.Results) *ResultsResponse {
	out := &ResultsResponse{
		Query:      res.Query,
		Match:      res.Match,
		Mode:       res.Mode,
		Generation: res.Generation,
		Count:      res.Len(),
		Partial:    res.Partial(),
		Blocks:     res.Blocks,
		Documents:  res.Documents,
		Spaces:     make([]SpaceStatus, len(res.Spaces)),
	}
	if res.Mode == search.ModeBlocks && out.Blocks == nil {
		out.Blocks = []core.Block{}
	}
	if res.Mode == search.ModeDocuments && out.Documents == nil {
		out.Documents = []core.DocumentGroup{}
	}

	for i, sr := range res.Spaces {
		st := SpaceStatus{
			SpaceID:    sr.SpaceID,
			Count:      sr.Count,
			Cached:     sr.Cached,
			DurationMs: sr.Duration.Milliseconds(),
		}
		if sr.Err != nil {
			st.Error = sr.Err.Error()
			var ue *search.IndexUnavailableError
			if errors.As(sr.Err, &ue) {
				st.TimedOut = ue.TimedOut()
			}
		}
		out.Spaces[i] = st
	}
	return out
}

type SpaceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// NewSpaceInfos converts space states to their API form, keeping their order.
func NewSpaceInfos(states []storage.SpaceState) []SpaceInfo {
	infos := make([]SpaceInfo, len(states))
	for i, st := range states {
		infos[i] = SpaceInfo{ID: st.ID, Name: st.Name, Path: st.Path, Available: st.Available}
		if st.Err != nil {
			infos[i].Error = st.Err.Error()
		}
	}
	return infos
}

type ListSpacesResponse struct {
	Spaces []SpaceInfo `json:"spaces"`
	Count  int         `json:"count"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Spaces    int       `json:"spaces"`
}

// ClientMessage is a search request sent over the WebSocket.
type ClientMessage struct {
	Mode  string `json:"mode"`
	Query string `json:"query"`
}

const (
	MessageInit    = "init"
	MessageResults = "results"
	MessageError   = "error"
)

// ServerMessage is everything the server sends over the WebSocket.
type ServerMessage struct {
	Type    string           `json:"type"`
	Session string           `json:"session,omitempty"`
	Spaces  []string         `json:"spaces,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Results *ResultsResponse `json:"results,omitempty"`
	Error   string           `json:"error,omitempty"`
}
