package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

func (s *Server) pollRepo() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Poll)
	defer ticker.Stop()

	s.log.Debug("repository polling started", "period", s.cfg.Poll)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Debug("repository polling stopped")
			return

		case <-ticker.C:
			s.safeRefresh("poll")
		}
	}
}

// safeRefresh keeps one bad read of a half-written repository from killing
// the background goroutine that called it.
func (s *Server) safeRefresh(trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while refreshing", "trigger", trigger, "panic", r)
		}
	}()
	if err := s.Refresh(); err != nil {
		s.log.Warn("refresh failed", "trigger", trigger, "err", err)
	}
}

// Refresh collects the repository state and broadcasts every part that
// changed since the last call.
func (s *Server) Refresh() error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	state, err := Collect(s.path, s.cfg.History, s.log)
	if err != nil {
		return err
	}

	parts := []struct {
		typ  MessageType
		data any
	}{
		{MessageTypeInfo, state.Info},
		{MessageTypeGraph, state.Graph},
		{MessageTypeStatus, state.Status},
	}
	encoded := make(map[MessageType][]byte, len(parts))
	for _, p := range parts {
		b, err := json.Marshal(p.data)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", p.typ, err)
		}
		encoded[p.typ] = b
	}

	s.mu.Lock()
	previous := s.encoded
	s.cached = state
	s.encoded = encoded
	s.mu.Unlock()

	for _, p := range parts {
		if old, ok := previous[p.typ]; ok && bytes.Equal(old, encoded[p.typ]) {
			continue
		}
		s.log.Debug("repository changed", "part", p.typ)
		s.broadcastUpdate(p.typ, p.data)
	}
	return nil
}
