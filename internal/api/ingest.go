package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nvalkov/station-core/internal/pipeline"
	"github.com/nvalkov/station-core/internal/telemetry"
)

// IngestResponse reports the outcome of one ingest call. Success false with
// a 202 status means the record was valid but dropped under overload; the
// device should keep sending.
type IngestResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	DeviceID       string `json:"device_id,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	RecordsCreated int    `json:"records_created"`
}

// handleIngest accepts one telemetry record and hands it to the pipeline.
//
// The handler never blocks on persistence: the pipeline either queues the
// record or rejects it immediately. Rejection under overload is reported in
// the body, not as a server error, so constrained firmware can treat any
// 202 as "delivered" and richer clients can inspect the success flag.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var record telemetry.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.pipeline.Accept(&record)
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			writeJSON(w, http.StatusAccepted, IngestResponse{
				Success:   false,
				Message:   queueFullMessage(record.Kind),
				DeviceID:  record.DeviceID,
				Timestamp: record.TS,
			})
			return
		}
		// Validation failure: unknown kind, empty batch, bad sample rate
		writeBadRequest(w, err.Error())
		return
	}

	// Scalar readings arrive at most every few seconds, so they bypass the
	// throttled emitter and go live immediately. Accel samples reach clients
	// through the ring and emitter instead.
	if record.Kind == telemetry.KindScalar {
		s.publishScalar(&record)
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		Success:        true,
		Message:        acceptedMessage(record.Kind, result.RecordsCreated),
		DeviceID:       record.DeviceID,
		Timestamp:      record.TS,
		RecordsCreated: result.RecordsCreated,
	})
}

// publishScalar pushes the accepted reading to live observers. Publish
// failures are logged and swallowed; the record is already queued and the
// live view must never cost an ingest.
func (s *Server) publishScalar(record *telemetry.Record) {
	if s.broadcaster == nil {
		return
	}
	event := pipeline.ScalarEvent{
		DeviceID: record.DeviceID,
		Sample:   record.ScalarSampleAt(time.Now()),
	}
	if err := s.broadcaster.Publish(pipeline.EventScalarData, event); err != nil {
		s.logger.Warn("scalar live publish failed", "device_id", record.DeviceID, "error", err)
	}
}

func acceptedMessage(kind telemetry.Kind, records int) string {
	if kind == telemetry.KindAccelBatch {
		return fmt.Sprintf("accel batch queued for storage (%d samples)", records)
	}
	return "scalar sample queued for storage"
}

func queueFullMessage(kind telemetry.Kind) string {
	if kind == telemetry.KindAccelBatch {
		return "accel storage queue is full (dropped)"
	}
	return "scalar storage queue is full (dropped)"
}
