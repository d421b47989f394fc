package pipeline

import "github.com/nvalkov/station-core/internal/telemetry"

// Event names published by the pipeline and the ingest API.
const (
	// EventScalarData carries one environmental reading, published as soon
	// as the record is accepted.
	EventScalarData = "scalar_data"

	// EventAccelData carries a throttled frame of acceleration samples,
	// published by the emitter at most once per tick.
	EventAccelData = "accel_data"
)

// Broadcaster delivers live events to connected consumers. Implementations
// must be safe for concurrent use and should return quickly; a slow or
// failing broadcaster costs discarded frames, never ingest latency.
type Broadcaster interface {
	Publish(event string, payload any) error
}

// BroadcastFunc adapts a function to the Broadcaster interface.
type BroadcastFunc func(event string, payload any) error

// Publish calls f(event, payload).
func (f BroadcastFunc) Publish(event string, payload any) error {
	return f(event, payload)
}

// Fanout returns a Broadcaster that publishes to every target in turn. All
// targets are attempted; the first error is returned.
func Fanout(targets ...Broadcaster) Broadcaster {
	return BroadcastFunc(func(event string, payload any) error {
		var first error
		for _, t := range targets {
			if t == nil {
				continue
			}
			if err := t.Publish(event, payload); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

// discardBroadcaster drops every event. It stands in when no live transport
// is configured so the emitter logic stays unconditional.
type discardBroadcaster struct{}

func (discardBroadcaster) Publish(string, any) error { return nil }

// AccelEvent is the payload of EventAccelData: the samples drained from the
// ring this tick plus the metadata of the newest contributing batch.
type AccelEvent struct {
	DeviceID     string              `json:"device_id"`
	Timestamp    string              `json:"timestamp"`
	ChunkStartUS int64               `json:"chunk_start_us"`
	SampleCount  int                 `json:"sample_count"`
	FsHz         int                 `json:"fs_hz"`
	Last         telemetry.Triplet   `json:"last"`
	Samples      []telemetry.Triplet `json:"samples"`
}

// ScalarEvent is the payload of EventScalarData.
type ScalarEvent struct {
	DeviceID string                 `json:"device_id"`
	Sample   telemetry.ScalarSample `json:"sample"`
}
