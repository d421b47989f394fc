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
	if s.secCfg.RateLimit.Enabled {
		r.Use(s.rateLimitMiddleware())
	}

	// JSON errors everywhere, including unmatched routes
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Health check (no auth, used by process monitors)
	r.Get("/health", s.handleHealth)

	// Device-facing routes, kept at the root for firmware compatibility
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/ingest", s.handleIngest)
		r.Get(s.wsPath(), s.handleWebSocket)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)

			r.Route("/samples", func(r chi.Router) {
				r.Get("/scalar", s.handleListScalar)
				r.Get("/accel", s.handleListAccel)
			})

			r.Route("/export", func(r chi.Router) {
				r.Get("/scalar.csv", s.handleExportScalarCSV)
				r.Get("/accel.csv", s.handleExportAccelCSV)
				r.Get("/scalar.xlsx", s.handleExportScalarXLSX)
				r.Get("/accel.xlsx", s.handleExportAccelXLSX)
			})
		})
	})

	return r
}

// wsPath returns the configured WebSocket route, defaulting to /ws.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
