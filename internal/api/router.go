package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	apiPrefix     = "/api/v1"
	defaultWSPath = apiPrefix + "/ws"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/tv", func(r chi.Router) {
			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions/{id}/request", s.handleSessionRequest)
			r.Get("/discovered", s.handleListDiscovered)
		})

		if sub, ok := strings.CutPrefix(wsPath, apiPrefix); ok && strings.HasPrefix(sub, "/") {
			r.Get(sub, s.handleWebSocket)
		}
	})

	if !strings.HasPrefix(wsPath, apiPrefix+"/") {
		r.Get(wsPath, s.handleWebSocket)
	}

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"sessions": len(s.bridge.Sessions()),
		"clients":  s.hub.ClientCount(),
	})
}
