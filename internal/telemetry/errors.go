package telemetry

import "errors"

// Validation errors returned by Record.Validate.
// These are boundary errors: the caller reports them to the device and
// nothing enters the pipeline.
var (
	// ErrUnknownKind indicates a record type that is neither scalar nor
	// accel_batch.
	ErrUnknownKind = errors.New("telemetry: unknown record kind")

	// ErrEmptyBatch indicates an accel batch with no samples.
	ErrEmptyBatch = errors.New("telemetry: accel batch has no samples")

	// ErrInvalidSampleRate indicates a negative fs_hz value.
	ErrInvalidSampleRate = errors.New("telemetry: invalid sample rate")
)
