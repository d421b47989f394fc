package pipeline

import (
	"sync"
	"time"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// Registry accumulates pipeline counters. Every mutation and every read
// takes the same mutex, so a snapshot is internally consistent: it never
// shows an inserted count from one commit paired with a last-commit stamp
// from another.
type Registry struct {
	mu sync.Mutex

	enqueuedScalar  uint64
	enqueuedAccel   uint64
	droppedScalar   uint64
	droppedAccel    uint64
	insertedScalar  uint64
	insertedAccel   uint64
	failedCommits   uint64
	broadcastErrors uint64
	lastCommit      string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RecordEnqueued counts one record of the given kind accepted into the
// write queue.
func (r *Registry) RecordEnqueued(kind telemetry.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case telemetry.KindAccelBatch:
		r.enqueuedAccel++
	default:
		r.enqueuedScalar++
	}
}

// RecordDropped counts one record of the given kind rejected because the
// write queue was full.
func (r *Registry) RecordDropped(kind telemetry.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case telemetry.KindAccelBatch:
		r.droppedAccel++
	default:
		r.droppedScalar++
	}
}

// RecordInserted counts the rows of a successful commit and stamps the
// commit time.
func (r *Registry) RecordInserted(scalars, batches int, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertedScalar += uint64(scalars)
	r.insertedAccel += uint64(batches)
	r.lastCommit = at.Format(time.RFC3339)
}

// RecordFailedCommit counts one dropped batch after a commit failure.
func (r *Registry) RecordFailedCommit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedCommits++
}

// RecordBroadcastError counts one discarded live frame after a publish
// failure.
func (r *Registry) RecordBroadcastError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastErrors++
}

// Snapshot is a point-in-time view of the pipeline. Counters come from the
// registry; depth gauges are read from the queue and ring at snapshot time.
type Snapshot struct {
	EnqueuedScalar     uint64 `json:"enqueued_scalar"`
	EnqueuedAccelBatch uint64 `json:"enqueued_accel_batch"`
	DroppedScalar      uint64 `json:"dropped_scalar"`
	DroppedAccelBatch  uint64 `json:"dropped_accel_batch"`
	InsertedScalar     uint64 `json:"inserted_scalar"`
	InsertedAccelBatch uint64 `json:"inserted_accel_batch"`
	FailedCommits      uint64 `json:"failed_commits"`
	BroadcastErrors    uint64 `json:"broadcast_errors"`

	// LastCommit is the RFC 3339 time of the last successful commit, empty
	// until the first batch lands.
	LastCommit string `json:"last_commit,omitempty"`

	QueueDepth    int  `json:"queue_depth"`
	QueueCapacity int  `json:"queue_capacity"`
	RingDepth     int  `json:"ring_depth"`
	RingCapacity  int  `json:"ring_capacity"`
	WriterRunning bool `json:"writer_running"`
}

// Snapshot returns the current counter values. Gauge fields are zero; the
// pipeline fills them in from its queue and ring.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		EnqueuedScalar:     r.enqueuedScalar,
		EnqueuedAccelBatch: r.enqueuedAccel,
		DroppedScalar:      r.droppedScalar,
		DroppedAccelBatch:  r.droppedAccel,
		InsertedScalar:     r.insertedScalar,
		InsertedAccelBatch: r.insertedAccel,
		FailedCommits:      r.failedCommits,
		BroadcastErrors:    r.broadcastErrors,
		LastCommit:         r.lastCommit,
	}
}
