package pipeline

import (
	"sync"
	"time"
)

// ThrottledEmitter republishes ring samples to the broadcaster on a fixed
// tick. Each tick drains at most EmitMaxSamples, so consumers see a bounded
// message rate and bounded frame sizes regardless of ingest burstiness.
//
// Publish failures are counted and the frame discarded; the emitter never
// stops ticking because a consumer is broken.
type ThrottledEmitter struct {
	ring        *BroadcastBuffer
	broadcaster Broadcaster
	metrics     *Registry
	logger      Logger

	interval   time.Duration
	maxSamples int

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewThrottledEmitter creates an emitter draining ring into broadcaster.
// Zero config fields fall back to the package defaults.
func NewThrottledEmitter(cfg Config, ring *BroadcastBuffer, broadcaster Broadcaster, metrics *Registry, logger Logger) *ThrottledEmitter {
	cfg = cfg.withDefaults()
	if broadcaster == nil {
		broadcaster = discardBroadcaster{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &ThrottledEmitter{
		ring:        ring,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
		interval:    cfg.EmitInterval,
		maxSamples:  cfg.EmitMaxSamples,
		done:        make(chan struct{}),
	}
}

// Start launches the emitter goroutine. Subsequent calls are no-ops.
func (e *ThrottledEmitter) Start() {
	e.startOnce.Do(func() {
		e.wg.Add(1)
		go e.run()
	})
}

// Close stops the emitter and waits for it to exit. One last drain is
// attempted so samples already in the ring get a final chance to reach
// consumers. Close is idempotent.
func (e *ThrottledEmitter) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

func (e *ThrottledEmitter) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			e.emit()
			return
		case <-ticker.C:
			e.emit()
		}
	}
}

// emit drains one frame from the ring and publishes it. Empty ticks publish
// nothing.
func (e *ThrottledEmitter) emit() {
	samples := e.ring.PopUpTo(e.maxSamples)
	if len(samples) == 0 {
		return
	}
	meta, _ := e.ring.Meta()

	event := AccelEvent{
		DeviceID:     meta.DeviceID,
		Timestamp:    meta.Timestamp,
		ChunkStartUS: meta.ChunkStartUS,
		SampleCount:  meta.SampleCount,
		FsHz:         meta.FsHz,
		Last:         meta.Last,
		Samples:      samples,
	}
	if err := e.broadcaster.Publish(EventAccelData, event); err != nil {
		e.metrics.RecordBroadcastError()
		e.logger.Warn("live frame discarded",
			"error", &BroadcastError{Event: EventAccelData, Samples: len(samples), Err: err})
	}
}
