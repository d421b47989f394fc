package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nvalkov/station-core/internal/storage"
)

// handleListScalar returns a page of stored scalar samples, newest first.
//
// Query parameters: start, end (RFC 3339), limit (default 200, max 1000),
// offset. Range bounds are half-open: start inclusive, end exclusive.
func (s *Server) handleListScalar(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	list, err := s.store.ListScalar(r.Context(), filter)
	if err != nil {
		s.logger.Error("scalar sample query failed", "error", err)
		writeInternalError(w, "failed to query scalar samples")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// handleListAccel returns a page of stored accel batch rows, newest first.
// The sample payload is omitted; sample_count carries the batch size.
func (s *Server) handleListAccel(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	list, err := s.store.ListAccel(r.Context(), filter)
	if err != nil {
		s.logger.Error("accel batch query failed", "error", err)
		writeInternalError(w, "failed to query accel batches")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// parseListFilter builds a storage filter from browse query parameters.
// Malformed values are rejected; out-of-range limit and offset are clamped
// by the storage layer.
func parseListFilter(r *http.Request) (storage.Filter, error) {
	filter, err := parseRangeFilter(r)
	if err != nil {
		return storage.Filter{}, err
	}

	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return storage.Filter{}, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return storage.Filter{}, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}

	return filter, nil
}

// parseRangeFilter builds a storage filter carrying only the time bounds.
// Bounds are normalised to RFC 3339 with second precision so they compare
// lexicographically against stored timestamps.
func parseRangeFilter(r *http.Request) (storage.Filter, error) {
	var filter storage.Filter

	q := r.URL.Query()
	if raw := q.Get("start"); raw != "" {
		t, err := parseRFC3339(raw)
		if err != nil {
			return storage.Filter{}, fmt.Errorf("invalid start: %w", err)
		}
		filter.Start = t.Format(time.RFC3339)
	}
	if raw := q.Get("end"); raw != "" {
		t, err := parseRFC3339(raw)
		if err != nil {
			return storage.Filter{}, fmt.Errorf("invalid end: %w", err)
		}
		filter.End = t.Format(time.RFC3339)
	}

	return filter, nil
}

// parseRFC3339 parses an RFC 3339 timestamp. Sub-second precision is
// accepted on input; the caller's formatting drops it.
func parseRFC3339(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an RFC 3339 timestamp", value)
	}
	return t, nil
}
