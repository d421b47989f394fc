package telemetry

import "fmt"

// Validate checks the record envelope before it enters the pipeline.
//
// Scalar records are permissive: an absent or empty payload is a valid
// (all-NULL) reading. Accel batches must carry at least one sample and a
// non-negative sample rate; fs_hz zero means "use the default".
//
// Returns:
//   - error: wrapping ErrUnknownKind, ErrEmptyBatch or ErrInvalidSampleRate
func (r *Record) Validate() error {
	switch r.Kind {
	case KindScalar:
		return nil

	case KindAccelBatch:
		if r.FsHz < 0 {
			return fmt.Errorf("%w: fs_hz %d", ErrInvalidSampleRate, r.FsHz)
		}
		if len(r.Samples) == 0 {
			return ErrEmptyBatch
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(r.Kind))
	}
}
