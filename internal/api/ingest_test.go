package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nvalkov/station-core/internal/pipeline"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

// recordingBroadcaster captures published events for assertions.
type recordingBroadcaster struct {
	mu       sync.Mutex
	events   []string
	payloads []any
	err      error
}

func (b *recordingBroadcaster) Publish(event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	b.payloads = append(b.payloads, payload)
	return b.err
}

func (b *recordingBroadcaster) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// ─── Ingest Tests ──────────────────────────────────────────────────

func TestIngest_Scalar(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{
		"device_id": "station-01",
		"timestamp": "2025-06-01T10:00:00Z",
		"type": "scalar",
		"data": {"time_local": "2025-06-01T10:00:00Z", "temp_c": 21.5, "hum_pct": 48.2}
	}`

	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var resp IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !resp.Success {
		t.Errorf("success = false, want true; message: %s", resp.Message)
	}
	if resp.RecordsCreated != 1 {
		t.Errorf("records_created = %d, want 1", resp.RecordsCreated)
	}
	if resp.DeviceID != "station-01" {
		t.Errorf("device_id = %q, want %q", resp.DeviceID, "station-01")
	}
	if resp.Timestamp != "2025-06-01T10:00:00Z" {
		t.Errorf("timestamp = %q, want echo of request timestamp", resp.Timestamp)
	}
}

func TestIngest_ScalarPublishesLive(t *testing.T) {
	srv, _ := testServer(t)
	rec := &recordingBroadcaster{}
	srv.broadcaster = rec
	router := srv.buildRouter()

	body := `{"device_id":"station-01","timestamp":"2025-06-01T10:00:00Z","type":"scalar","data":{"temp_c":21.5}}`
	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	events := rec.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0] != pipeline.EventScalarData {
		t.Errorf("event = %q, want %q", events[0], pipeline.EventScalarData)
	}

	ev, ok := rec.payloads[0].(pipeline.ScalarEvent)
	if !ok {
		t.Fatalf("payload type = %T, want pipeline.ScalarEvent", rec.payloads[0])
	}
	if ev.DeviceID != "station-01" {
		t.Errorf("event device_id = %q, want %q", ev.DeviceID, "station-01")
	}
	if ev.Sample.TempC == nil || *ev.Sample.TempC != 21.5 {
		t.Errorf("event temp_c = %v, want 21.5", ev.Sample.TempC)
	}
}

func TestIngest_AccelBatch(t *testing.T) {
	srv, _ := testServer(t)
	rec := &recordingBroadcaster{}
	srv.broadcaster = rec
	router := srv.buildRouter()

	body := `{
		"device_id": "station-01",
		"timestamp": "2025-06-01T10:00:00Z",
		"type": "accel_batch",
		"fs_hz": 500,
		"chunk_start_us": 1000000,
		"samples": [[1, 2, 3], [4, 5, 6], [7, 8, 9]]
	}`

	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var resp IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !resp.Success {
		t.Errorf("success = false, want true; message: %s", resp.Message)
	}
	if resp.RecordsCreated != 3 {
		t.Errorf("records_created = %d, want 3", resp.RecordsCreated)
	}

	// Accel samples reach clients via the ring and emitter, never as a
	// direct publish from the handler.
	if events := rec.published(); len(events) != 0 {
		t.Errorf("published %d events, want 0", len(events))
	}
}

func TestIngest_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := authedRequest(http.MethodPost, "/ingest", jsonBody("not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var apiErr Error
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if apiErr.Code != ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeBadRequest)
	}
}

func TestIngest_UnknownType(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"device_id":"station-01","type":"humidity_wave"}`
	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var apiErr Error
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(apiErr.Message, "unknown record kind") {
		t.Errorf("message = %q, want mention of unknown record kind", apiErr.Message)
	}
}

func TestIngest_EmptyAccelBatch(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"device_id":"station-01","type":"accel_batch","fs_hz":500,"samples":[]}`
	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestIngest_NegativeSampleRate(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"device_id":"station-01","type":"accel_batch","fs_hz":-1,"samples":[[1,2,3]]}`
	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestIngest_QueueFull(t *testing.T) {
	// Capacity one and no running writer: the first record occupies the
	// queue, the second is dropped.
	srv, _ := testServerWithPipeline(t, pipeline.Config{QueueCapacity: 1})
	router := srv.buildRouter()

	body := `{"device_id":"station-01","timestamp":"2025-06-01T10:00:00Z","type":"scalar","data":{"temp_c":21.5}}`

	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("first ingest status = %d, want %d", w.Code, http.StatusAccepted)
	}

	req = authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Overload is reported in the body, not as a server error, so firmware
	// that only checks the status code keeps sending.
	if w.Code != http.StatusAccepted {
		t.Fatalf("second ingest status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var resp IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success {
		t.Error("success = true, want false for dropped record")
	}
	if resp.RecordsCreated != 0 {
		t.Errorf("records_created = %d, want 0", resp.RecordsCreated)
	}
	if !strings.Contains(resp.Message, "full") {
		t.Errorf("message = %q, want mention of full queue", resp.Message)
	}
}

func TestIngest_BroadcastFailureStillAccepted(t *testing.T) {
	srv, _ := testServer(t)
	srv.broadcaster = &recordingBroadcaster{err: errors.New("hub gone")}
	router := srv.buildRouter()

	body := `{"device_id":"station-01","type":"scalar","data":{"temp_c":21.5}}`
	req := authedRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	var resp IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true; live publish must never cost an ingest")
	}
}

func TestIngest_RequiresAuth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"device_id":"station-01","type":"scalar"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", jsonBody(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
