package telemetry

import "time"

// Kind discriminates the two record types accepted at the ingest boundary.
type Kind string

// Record kinds.
const (
	KindScalar     Kind = "scalar"
	KindAccelBatch Kind = "accel_batch"
)

// DefaultSampleRateHz is assumed when an accel batch omits its sample rate.
const DefaultSampleRateHz = 500

// Triplet is one accelerometer sample: raw counts for the x, y and z axes.
// It marshals to JSON as a three-element array.
type Triplet [3]int

// ScalarSample is a single weather reading. Measurement fields are pointers
// because a device may report any subset; nil maps to NULL in storage.
// A sample is immutable once constructed.
type ScalarSample struct {
	TimeLocal  string   `json:"time_local"`
	TempC      *float64 `json:"temp_c,omitempty"`
	HumPct     *float64 `json:"hum_pct,omitempty"`
	WindDirDeg *int     `json:"wind_dir_deg,omitempty"`
	WindDirTxt *string  `json:"wind_dir_txt,omitempty"`
	WindSpdMS  *float64 `json:"wind_spd_ms,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// AccelBatch is one accelerometer burst. Samples are time-ordered from
// ChunkStartUS at FsHz; order is significant and preserved end to end.
type AccelBatch struct {
	ChunkStartUS int64     `json:"chunk_start_us"`
	FsHz         int       `json:"fs_hz"`
	Samples      []Triplet `json:"samples"`
	CreatedAt    string    `json:"created_at"`
}

// Record is the envelope devices POST to the ingest endpoint.
//
// Exactly one payload shape applies per kind:
//   - KindScalar uses Sample (may be omitted for an empty reading)
//   - KindAccelBatch uses FsHz, ChunkStartUS and Samples
type Record struct {
	DeviceID string `json:"device_id"`
	TS       string `json:"timestamp"`
	Kind     Kind   `json:"type"`

	// Scalar payload
	Sample *ScalarSample `json:"data,omitempty"`

	// Accel payload
	FsHz         int       `json:"fs_hz,omitempty"`
	ChunkStartUS int64     `json:"chunk_start_us,omitempty"`
	Samples      []Triplet `json:"samples,omitempty"`
}

// ScalarSampleAt materialises the record's scalar payload. A missing
// TimeLocal falls back to the record timestamp, then to now; CreatedAt is
// always stamped with now when absent.
func (r *Record) ScalarSampleAt(now time.Time) ScalarSample {
	var s ScalarSample
	if r.Sample != nil {
		s = *r.Sample
	}
	if s.TimeLocal == "" {
		// Prefer the device's own send time over the server clock.
		if r.TS != "" {
			s.TimeLocal = r.TS
		} else {
			s.TimeLocal = now.Format(time.RFC3339)
		}
	}
	if s.CreatedAt == "" {
		s.CreatedAt = now.Format(time.RFC3339)
	}
	return s
}

// AccelBatchAt materialises the record's accel payload, applying the
// default sample rate when the device omitted fs_hz.
func (r *Record) AccelBatchAt(now time.Time) AccelBatch {
	fs := r.FsHz
	if fs == 0 {
		fs = DefaultSampleRateHz
	}
	return AccelBatch{
		ChunkStartUS: r.ChunkStartUS,
		FsHz:         fs,
		Samples:      r.Samples,
		CreatedAt:    now.Format(time.RFC3339),
	}
}

// Tail returns the most recent n samples of the batch, or all of them when
// the batch is shorter. The returned slice aliases the batch payload.
func (b AccelBatch) Tail(n int) []Triplet {
	if n <= 0 || len(b.Samples) == 0 {
		return nil
	}
	if len(b.Samples) <= n {
		return b.Samples
	}
	return b.Samples[len(b.Samples)-n:]
}

// LastTriplet returns the final sample of the batch, the zero Triplet for
// an empty batch.
func (b AccelBatch) LastTriplet() Triplet {
	if len(b.Samples) == 0 {
		return Triplet{}
	}
	return b.Samples[len(b.Samples)-1]
}
