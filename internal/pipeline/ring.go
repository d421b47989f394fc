package pipeline

import (
	"sync"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// BroadcastMeta describes the most recent acceleration batch pushed to the
// ring. The emitter attaches it to every outgoing frame; when several
// batches arrive inside one tick, the latest wins.
type BroadcastMeta struct {
	DeviceID     string            `json:"device_id"`
	Timestamp    string            `json:"timestamp"`
	ChunkStartUS int64             `json:"chunk_start_us"`
	SampleCount  int               `json:"sample_count"`
	FsHz         int               `json:"fs_hz"`
	Last         telemetry.Triplet `json:"last"`
}

// BroadcastBuffer is a fixed-capacity ring of acceleration samples feeding
// the throttled emitter. Pushing to a full ring evicts the oldest samples,
// so a stalled or slow broadcaster costs stale frames, never memory.
//
// All methods are safe for concurrent use.
type BroadcastBuffer struct {
	mu   sync.Mutex
	buf  []telemetry.Triplet
	head int // index of the oldest sample
	size int

	meta    BroadcastMeta
	hasMeta bool
}

// NewBroadcastBuffer creates a ring holding at most capacity samples.
func NewBroadcastBuffer(capacity int) *BroadcastBuffer {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &BroadcastBuffer{
		buf: make([]telemetry.Triplet, capacity),
	}
}

// Push appends samples in order, evicting the oldest entries once the ring
// is full, and replaces the current metadata snapshot.
func (b *BroadcastBuffer) Push(samples []telemetry.Triplet, meta BroadcastMeta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range samples {
		if b.size == len(b.buf) {
			// Overwrite the oldest slot.
			b.buf[b.head] = s
			b.head = (b.head + 1) % len(b.buf)
			continue
		}
		b.buf[(b.head+b.size)%len(b.buf)] = s
		b.size++
	}
	b.meta = meta
	b.hasMeta = true
}

// PopUpTo removes and returns at most max samples, oldest first. It returns
// nil when the ring is empty.
func (b *BroadcastBuffer) PopUpTo(max int) []telemetry.Triplet {
	b.mu.Lock()
	defer b.mu.Unlock()

	if max <= 0 || b.size == 0 {
		return nil
	}
	n := max
	if n > b.size {
		n = b.size
	}
	out := make([]telemetry.Triplet, n)
	for i := range out {
		out[i] = b.buf[b.head]
		b.head = (b.head + 1) % len(b.buf)
	}
	b.size -= n
	return out
}

// Meta returns the metadata of the most recent push.
//
// Returns:
//   - meta: snapshot of the latest batch metadata
//   - ok: false if nothing has been pushed yet
func (b *BroadcastBuffer) Meta() (BroadcastMeta, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta, b.hasMeta
}

// Len returns the number of samples currently buffered.
func (b *BroadcastBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the fixed ring capacity.
func (b *BroadcastBuffer) Capacity() int {
	return len(b.buf)
}
