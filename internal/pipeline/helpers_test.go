package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// waitFor polls cond until it returns true or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type commitCall struct {
	scalars []telemetry.ScalarSample
	batches []telemetry.AccelBatch
}

// stubStore records every successful commit and can be told to fail the
// first N calls.
type stubStore struct {
	mu       sync.Mutex
	commits  []commitCall
	failNext int
	failErr  error
}

func (s *stubStore) CommitBatch(_ context.Context, scalars []telemetry.ScalarSample, batches []telemetry.AccelBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return s.failErr
	}
	s.commits = append(s.commits, commitCall{
		scalars: append([]telemetry.ScalarSample(nil), scalars...),
		batches: append([]telemetry.AccelBatch(nil), batches...),
	})
	return nil
}

func (s *stubStore) calls() []commitCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commitCall(nil), s.commits...)
}

func (s *stubStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}

type publishedEvent struct {
	name    string
	payload any
}

// stubBroadcaster records published events. While fail is set every publish
// returns that error and nothing is recorded.
type stubBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
	fail   error
}

func (b *stubBroadcaster) Publish(event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.events = append(b.events, publishedEvent{name: event, payload: payload})
	return nil
}

func (b *stubBroadcaster) published() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedEvent(nil), b.events...)
}

func (b *stubBroadcaster) eventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *stubBroadcaster) setFail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = err
}

// scalarRecord builds a minimal valid scalar record with a distinguishable
// temperature.
func scalarRecord(temp float64) *telemetry.Record {
	return &telemetry.Record{
		DeviceID: "bench-01",
		TS:       "2026-05-12T08:30:00Z",
		Kind:     telemetry.KindScalar,
		Sample:   &telemetry.ScalarSample{TempC: &temp},
	}
}

// accelRecord builds a valid acceleration record with n sequential samples.
func accelRecord(n int) *telemetry.Record {
	samples := make([]telemetry.Triplet, n)
	for i := range samples {
		samples[i] = telemetry.Triplet{i, i * 2, i * 3}
	}
	return &telemetry.Record{
		DeviceID:     "vib-01",
		TS:           "2026-05-12T08:30:00Z",
		Kind:         telemetry.KindAccelBatch,
		FsHz:         500,
		ChunkStartUS: 1747038600000000,
		Samples:      samples,
	}
}

// testTime is a fixed instant for deterministic sample materialisation.
func testTime() time.Time {
	return time.Date(2026, 5, 12, 8, 30, 0, 0, time.UTC)
}

// triplets builds n sequential samples for direct ring manipulation.
func triplets(start, n int) []telemetry.Triplet {
	out := make([]telemetry.Triplet, n)
	for i := range out {
		out[i] = telemetry.Triplet{start + i, 0, 0}
	}
	return out
}
