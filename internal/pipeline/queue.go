package pipeline

import "sync/atomic"

// WriteQueue is the bounded FIFO between the ingest gateway and the batch
// writer. Producers hand work over with TryEnqueue, which never blocks: a
// full queue rejects the task immediately so the request path stays fast no
// matter how far persistence has fallen behind.
//
// The queue is safe for concurrent producers. The batch writer is the only
// consumer.
type WriteQueue struct {
	ch       chan WriteTask
	depth    atomic.Int64
	capacity int
}

// NewWriteQueue creates a queue holding at most capacity tasks.
//
// Parameters:
//   - capacity: maximum queued tasks, must be positive
func NewWriteQueue(capacity int) *WriteQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &WriteQueue{
		ch:       make(chan WriteTask, capacity),
		capacity: capacity,
	}
}

// TryEnqueue attempts to add a task without blocking.
//
// Returns:
//   - true: the task was queued
//   - false: the queue is full and the task was rejected
func (q *WriteQueue) TryEnqueue(task WriteTask) bool {
	select {
	case q.ch <- task:
		q.depth.Add(1)
		return true
	default:
		return false
	}
}

// Chan exposes the receive side for the writer's select loop. The consumer
// must call MarkDequeued for every task it receives.
func (q *WriteQueue) Chan() <-chan WriteTask {
	return q.ch
}

// MarkDequeued records that one task left the queue, keeping the depth
// gauge honest.
func (q *WriteQueue) MarkDequeued() {
	q.depth.Add(-1)
}

// Depth returns the number of tasks currently queued.
func (q *WriteQueue) Depth() int {
	return int(q.depth.Load())
}

// Capacity returns the fixed queue capacity.
func (q *WriteQueue) Capacity() int {
	return q.capacity
}
