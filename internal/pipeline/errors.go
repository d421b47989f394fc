package pipeline

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by IngestGateway.Accept when the write queue
// has no free slot. It is expected under sustained overload and is not
// fatal: the record is dropped, counted, and the caller should report
// accepted=false rather than an internal failure.
var ErrQueueFull = errors.New("pipeline: write queue full")

// CommitError describes a failed batch commit. The batch it wraps has been
// dropped: the writer does not retry, it clears its buffers and keeps
// consuming the queue.
type CommitError struct {
	Scalars int   // scalar rows in the dropped batch
	Batches int   // acceleration batch rows in the dropped batch
	Err     error // underlying storage error
}

// Error implements the error interface.
func (e *CommitError) Error() string {
	return fmt.Sprintf("pipeline: commit of %d scalar and %d accel rows failed: %v", e.Scalars, e.Batches, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *CommitError) Unwrap() error {
	return e.Err
}

// BroadcastError describes a failed live publish. The payload it wraps has
// been discarded; the emitter keeps ticking and later samples are unaffected.
type BroadcastError struct {
	Event   string // event name that failed to publish
	Samples int    // samples in the discarded payload
	Err     error  // underlying transport error
}

// Error implements the error interface.
func (e *BroadcastError) Error() string {
	return fmt.Sprintf("pipeline: broadcast of %q with %d samples failed: %v", e.Event, e.Samples, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *BroadcastError) Unwrap() error {
	return e.Err
}
