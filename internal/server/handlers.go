package server

import (
	"encoding/json"
	"net/http"

	"github.com/rybkr/gitpast/internal/history"
)

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encoding response failed", "err", err)
	}
}

// current returns the cached state, answering 503 while there is none.
func (s *Server) current(w http.ResponseWriter) (*State, bool) {
	state := s.State()
	if state == nil {
		http.Error(w, "repository not loaded yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return state, true
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if state, ok := s.current(w); ok {
		s.writeJSON(w, state.Info)
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if state, ok := s.current(w); ok {
		s.writeJSON(w, state.Graph)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if state, ok := s.current(w); ok {
		s.writeJSON(w, state.Status)
	}
}

// handleDump prints the history as plain text, one commit per line.
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	state, ok := s.current(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := history.Dump(w, state.graph, state.root, history.Style{}); err != nil {
		s.log.Warn("writing history failed", "err", err)
	}
}
