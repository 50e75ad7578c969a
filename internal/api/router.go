package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade cannot carry an Authorization header, so the
		// connection authenticates with a single-use ticket instead
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - operator must be logged
			// in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Variable endpoints
			r.Get("/variables", s.handleListVariables)

			// Sweep endpoints
			r.Route("/sweep", func(r chi.Router) {
				r.Post("/preview", s.handleSweepPreview)
				r.Post("/schedule", s.handleSweepSchedule)
			})

			// Run endpoints
			r.Route("/runs", func(r chi.Router) {
				r.Get("/", s.handleListRuns)
				r.Post("/", s.handleCreateRun)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRun)
					r.Delete("/", s.handleDeleteRun)
					r.Post("/start", s.handleStartRun)
					r.Post("/stop", s.handleStopRun)
					r.Get("/captures", s.handleListCaptures)
				})
			})

			// Audit trail
			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mqttConnected := s.mqtt != nil && s.mqtt.IsConnected()
	_, runActive := s.engine.Active()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"mqtt_connected": mqttConnected,
		"run_active":     runActive,
	})
}
