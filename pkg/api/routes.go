package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/documents", s.HandleDocuments)
	mux.HandleFunc("GET /api/spaces", s.HandleSpaces)
	mux.HandleFunc("GET /api/search/ws", s.HandleSearchWS)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
