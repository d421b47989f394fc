package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// Store persists drained batches. CommitBatch must be atomic: either every
// row in the call is durable or none is.
type Store interface {
	CommitBatch(ctx context.Context, scalars []telemetry.ScalarSample, batches []telemetry.AccelBatch) error
}

// CommitHook runs on the writer goroutine after each successful commit with
// the rows that were just persisted. It is used to mirror batches to
// secondary sinks; a hook must not block for long, commits wait on it.
type CommitHook func(scalars []telemetry.ScalarSample, batches []telemetry.AccelBatch)

// commitTimeout bounds a single CommitBatch call so a wedged database
// cannot hang the writer forever.
const commitTimeout = 30 * time.Second

// BatchWriter is the single consumer of the write queue. It drains tasks in
// chunks, buffers them per kind, and commits a batch when either enough
// items have accumulated or the commit interval has elapsed.
//
// Persistence is at-most-once: a failed commit drops that batch, counts it,
// and the writer moves on. There is no retry and no redelivery.
type BatchWriter struct {
	queue   *WriteQueue
	store   Store
	metrics *Registry
	logger  Logger

	maxBatchItems  int
	commitInterval time.Duration
	pollInterval   time.Duration
	drainMax       int

	// Owned by the worker goroutine once Start has been called.
	scalarBuf []telemetry.ScalarSample
	accelBuf  []telemetry.AccelBatch
	lastFlush time.Time
	hook      CommitHook

	done      chan struct{}
	wg        sync.WaitGroup
	running   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

// NewBatchWriter creates a writer consuming queue into store. Zero config
// fields fall back to the package defaults.
func NewBatchWriter(cfg Config, queue *WriteQueue, store Store, metrics *Registry, logger Logger) *BatchWriter {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = noopLogger{}
	}
	return &BatchWriter{
		queue:          queue,
		store:          store,
		metrics:        metrics,
		logger:         logger,
		maxBatchItems:  cfg.MaxBatchItems,
		commitInterval: cfg.CommitInterval,
		pollInterval:   cfg.PollInterval,
		drainMax:       cfg.DrainMax,
		done:           make(chan struct{}),
	}
}

// SetCommitHook installs a post-commit hook. Must be called before Start.
func (w *BatchWriter) SetCommitHook(hook CommitHook) {
	w.hook = hook
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (w *BatchWriter) Start() {
	w.startOnce.Do(func() {
		w.lastFlush = time.Now()
		w.running.Store(true)
		w.wg.Add(1)
		go w.run()
	})
}

// Close stops the worker and waits for it to exit. The worker performs one
// final flush of buffered items before returning, so after Close everything
// that reached the writer's buffers has been offered to the store exactly
// once. Close is idempotent.
func (w *BatchWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

// Running reports whether the worker goroutine is alive.
func (w *BatchWriter) Running() bool {
	return w.running.Load()
}

func (w *BatchWriter) run() {
	defer w.wg.Done()
	defer w.running.Store(false)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			w.flush()
			return

		case task := <-w.queue.Chan():
			w.queue.MarkDequeued()
			w.buffer(task)
			w.drainChunk()
			if w.buffered() >= w.maxBatchItems || time.Since(w.lastFlush) >= w.commitInterval {
				w.flush()
			}

		case <-ticker.C:
			if w.buffered() > 0 && time.Since(w.lastFlush) >= w.commitInterval {
				w.flush()
			}
		}
	}
}

// drainChunk pulls queued tasks without blocking until the chunk limit is
// reached or the queue is empty. The task that woke the loop counts toward
// the limit.
func (w *BatchWriter) drainChunk() {
	for n := 1; n < w.drainMax; n++ {
		select {
		case task := <-w.queue.Chan():
			w.queue.MarkDequeued()
			w.buffer(task)
		default:
			return
		}
	}
}

func (w *BatchWriter) buffer(task WriteTask) {
	switch {
	case task.Accel != nil:
		w.accelBuf = append(w.accelBuf, *task.Accel)
	case task.Scalar != nil:
		w.scalarBuf = append(w.scalarBuf, *task.Scalar)
	}
}

func (w *BatchWriter) buffered() int {
	return len(w.scalarBuf) + len(w.accelBuf)
}

// flush commits the buffered rows in one transaction. Buffers are cleared
// whether the commit succeeds or fails; the interval clock resets on every
// attempt so a failing store is retried no faster than the commit interval.
func (w *BatchWriter) flush() {
	w.lastFlush = time.Now()
	if len(w.scalarBuf) == 0 && len(w.accelBuf) == 0 {
		return
	}

	scalars, batches := w.scalarBuf, w.accelBuf
	w.scalarBuf, w.accelBuf = nil, nil

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	if err := w.store.CommitBatch(ctx, scalars, batches); err != nil {
		w.metrics.RecordFailedCommit()
		w.logger.Error("batch commit failed, batch dropped",
			"error", &CommitError{Scalars: len(scalars), Batches: len(batches), Err: err})
		return
	}

	w.metrics.RecordInserted(len(scalars), len(batches), time.Now())
	if w.hook != nil {
		w.hook(scalars, batches)
	}
	w.logger.Debug("batch committed",
		"scalar_rows", len(scalars),
		"accel_rows", len(batches),
		"queue_depth", w.queue.Depth())
}
