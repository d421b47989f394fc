package pipeline

import (
	"errors"
	"time"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// Default tuning values. They match a single-station deployment ingesting
// one scalar producer and one 500 Hz acceleration producer.
const (
	DefaultQueueCapacity  = 50000
	DefaultMaxBatchItems  = 5000
	DefaultCommitInterval = time.Second
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultDrainMax       = 512
	DefaultRingCapacity   = 8192
	DefaultTailLimit      = 1000
	DefaultEmitInterval   = 100 * time.Millisecond
	DefaultEmitMaxSamples = 500
)

// Config carries the pipeline tuning knobs. The zero value is usable: every
// field falls back to its package default.
type Config struct {
	// QueueCapacity bounds the write queue; a full queue rejects new work.
	QueueCapacity int

	// MaxBatchItems flushes the writer once this many items are buffered.
	MaxBatchItems int

	// CommitInterval flushes the writer once this much time has passed
	// since the last flush attempt, even if the batch is small.
	CommitInterval time.Duration

	// PollInterval is how often the idle writer checks the time trigger.
	PollInterval time.Duration

	// DrainMax caps how many tasks one drain cycle pulls from the queue.
	DrainMax int

	// RingCapacity bounds the broadcast ring; a full ring evicts oldest.
	RingCapacity int

	// TailLimit caps how many samples of one acceleration batch are pushed
	// to the ring.
	TailLimit int

	// EmitInterval is the emitter tick.
	EmitInterval time.Duration

	// EmitMaxSamples caps the samples published per tick.
	EmitMaxSamples int
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.MaxBatchItems <= 0 {
		c.MaxBatchItems = DefaultMaxBatchItems
	}
	if c.CommitInterval <= 0 {
		c.CommitInterval = DefaultCommitInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DrainMax <= 0 {
		c.DrainMax = DefaultDrainMax
	}
	if c.RingCapacity <= 0 {
		c.RingCapacity = DefaultRingCapacity
	}
	if c.TailLimit <= 0 {
		c.TailLimit = DefaultTailLimit
	}
	if c.EmitInterval <= 0 {
		c.EmitInterval = DefaultEmitInterval
	}
	if c.EmitMaxSamples <= 0 {
		c.EmitMaxSamples = DefaultEmitMaxSamples
	}
	return c
}

// Logger is the minimal logging interface the pipeline needs. It is
// satisfied by *logging.Logger and by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pipeline owns every ingestion component and their shared state: metrics
// registry, write queue, broadcast ring, batch writer, throttled emitter
// and ingest gateway. Construct with New, then Start, then Close.
type Pipeline struct {
	cfg     Config
	logger  Logger
	metrics *Registry
	queue   *WriteQueue
	ring    *BroadcastBuffer
	writer  *BatchWriter
	emitter *ThrottledEmitter
	gateway *IngestGateway
}

// New assembles a pipeline.
//
// Parameters:
//   - cfg: tuning knobs, zero fields use defaults
//   - store: batch persistence, required
//   - broadcaster: live event sink, nil to disable broadcasting
//   - logger: pipeline logging, nil for silent operation
func New(cfg Config, store Store, broadcaster Broadcaster, logger Logger) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = noopLogger{}
	}

	metrics := NewRegistry()
	queue := NewWriteQueue(cfg.QueueCapacity)
	ring := NewBroadcastBuffer(cfg.RingCapacity)

	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		queue:   queue,
		ring:    ring,
		writer:  NewBatchWriter(cfg, queue, store, metrics, logger),
		emitter: NewThrottledEmitter(cfg, ring, broadcaster, metrics, logger),
		gateway: NewIngestGateway(cfg, queue, ring, metrics),
	}, nil
}

// SetCommitHook installs a post-commit hook on the batch writer. Must be
// called before Start.
func (p *Pipeline) SetCommitHook(hook CommitHook) {
	p.writer.SetCommitHook(hook)
}

// Start launches the writer and emitter goroutines.
func (p *Pipeline) Start() {
	p.writer.Start()
	p.emitter.Start()
	p.logger.Info("pipeline started",
		"queue_capacity", p.cfg.QueueCapacity,
		"max_batch_items", p.cfg.MaxBatchItems,
		"commit_interval", p.cfg.CommitInterval,
		"ring_capacity", p.cfg.RingCapacity,
		"emit_interval", p.cfg.EmitInterval)
}

// Close stops the emitter, then the writer, and waits for both goroutines
// to exit. The writer flushes its buffers exactly once on the way out.
// Close is idempotent and safe to call on a pipeline that never started.
func (p *Pipeline) Close() {
	p.emitter.Close()
	p.writer.Close()
	p.logger.Info("pipeline stopped", "queue_depth", p.queue.Depth())
}

// Accept validates and routes one record. See IngestGateway.Accept.
func (p *Pipeline) Accept(record *telemetry.Record) (Result, error) {
	return p.gateway.Accept(record)
}

// Snapshot returns a consistent view of the pipeline counters plus current
// queue and ring gauges.
func (p *Pipeline) Snapshot() Snapshot {
	snap := p.metrics.Snapshot()
	snap.QueueDepth = p.queue.Depth()
	snap.QueueCapacity = p.queue.Capacity()
	snap.RingDepth = p.ring.Len()
	snap.RingCapacity = p.ring.Capacity()
	snap.WriterRunning = p.writer.Running()
	return snap
}
