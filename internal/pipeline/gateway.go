package pipeline

import (
	"time"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// Result reports what happened to an accepted record.
type Result struct {
	// Accepted is true when the record was queued for persistence.
	Accepted bool `json:"accepted"`

	// RecordsCreated is the number of rows the record will produce once
	// committed: 1 for a scalar, the sample count for an acceleration
	// batch, 0 when the record was dropped.
	RecordsCreated int `json:"records_created"`
}

// IngestGateway is the single entry point for telemetry. It validates the
// record, hands it to the write queue without blocking, and for
// acceleration batches additionally pushes a bounded tail of samples to the
// broadcast ring. The broadcast push is independent of the persistence
// enqueue: a full queue never costs the live view and a full ring never
// costs a row.
type IngestGateway struct {
	queue     *WriteQueue
	ring      *BroadcastBuffer
	metrics   *Registry
	tailLimit int

	now func() time.Time
}

// NewIngestGateway creates a gateway feeding queue and ring.
func NewIngestGateway(cfg Config, queue *WriteQueue, ring *BroadcastBuffer, metrics *Registry) *IngestGateway {
	cfg = cfg.withDefaults()
	return &IngestGateway{
		queue:     queue,
		ring:      ring,
		metrics:   metrics,
		tailLimit: cfg.TailLimit,
		now:       time.Now,
	}
}

// Accept validates and routes one record.
//
// Returns:
//   - Result: whether the record was queued and how many rows it will create
//   - error: a telemetry validation error for malformed records, or
//     ErrQueueFull when the write queue rejected a valid record
//
// ErrQueueFull is expected under overload and should be reported to the
// device as accepted=false, not as a server failure. Validation errors and
// queue-full rejections never disturb records already queued.
func (g *IngestGateway) Accept(record *telemetry.Record) (Result, error) {
	if err := record.Validate(); err != nil {
		return Result{}, err
	}

	switch record.Kind {
	case telemetry.KindAccelBatch:
		return g.acceptAccel(record)
	default:
		return g.acceptScalar(record)
	}
}

func (g *IngestGateway) acceptScalar(record *telemetry.Record) (Result, error) {
	sample := record.ScalarSampleAt(g.now())
	if !g.queue.TryEnqueue(ScalarTask(sample)) {
		g.metrics.RecordDropped(telemetry.KindScalar)
		return Result{}, ErrQueueFull
	}
	g.metrics.RecordEnqueued(telemetry.KindScalar)
	return Result{Accepted: true, RecordsCreated: 1}, nil
}

func (g *IngestGateway) acceptAccel(record *telemetry.Record) (Result, error) {
	now := g.now()
	batch := record.AccelBatchAt(now)

	// Live side first: the tail goes to the ring whatever happens to the
	// persistence enqueue below.
	ts := record.TS
	if ts == "" {
		ts = now.Format(time.RFC3339)
	}
	g.ring.Push(batch.Tail(g.tailLimit), BroadcastMeta{
		DeviceID:     record.DeviceID,
		Timestamp:    ts,
		ChunkStartUS: batch.ChunkStartUS,
		SampleCount:  len(batch.Samples),
		FsHz:         batch.FsHz,
		Last:         batch.LastTriplet(),
	})

	if !g.queue.TryEnqueue(AccelTask(batch)) {
		g.metrics.RecordDropped(telemetry.KindAccelBatch)
		return Result{}, ErrQueueFull
	}
	g.metrics.RecordEnqueued(telemetry.KindAccelBatch)
	return Result{Accepted: true, RecordsCreated: len(batch.Samples)}, nil
}
