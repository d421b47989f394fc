package api

import (
	"net/http"
	"time"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Database  DatabaseCounts `json:"database"`
}

// DatabaseCounts carries the stored row totals reported by the health check.
type DatabaseCounts struct {
	ScalarSamples int64 `json:"scalar_samples"`
	AccelBatches  int64 `json:"accel_batches"`
}

// handleHealth reports service health and stored row counts. Process
// monitors poll this endpoint, so it stays unauthenticated and cheap: two
// COUNT queries against indexed tables.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.db.HealthCheck(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeUnavailable(w, "database unreachable")
		return
	}

	scalarCount, err := s.store.CountScalar(ctx)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		writeUnavailable(w, "database query failed")
		return
	}
	accelCount, err := s.store.CountAccel(ctx)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		writeUnavailable(w, "database query failed")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database: DatabaseCounts{
			ScalarSamples: scalarCount,
			AccelBatches:  accelCount,
		},
	})
}
