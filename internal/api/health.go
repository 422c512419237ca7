package api

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ReadyHandler reports readiness; with a Postgres or Redis backend a failed
// ping flips the instance out of rotation.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	type pinger interface{ Ping(context.Context) error }
	if p, ok := s.Store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "store unavailable", err.Error(), r.URL.Path)
			return
		}
	}
	if rn, ok := s.Notify.(*RedisNotifier); ok {
		if err := rn.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "broker unavailable", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "wsSessions": s.Live.SessionCount()})
}
