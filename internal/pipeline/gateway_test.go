package pipeline

import (
	"errors"
	"testing"

	"github.com/nvalkov/station-core/internal/telemetry"
)

func newTestGateway(cfg Config) (*IngestGateway, *WriteQueue, *BroadcastBuffer, *Registry) {
	queue := NewWriteQueue(cfg.QueueCapacity)
	ring := NewBroadcastBuffer(cfg.RingCapacity)
	metrics := NewRegistry()
	return NewIngestGateway(cfg, queue, ring, metrics), queue, ring, metrics
}

func TestIngestGateway_AcceptScalar(t *testing.T) {
	g, queue, ring, metrics := newTestGateway(testConfig())

	res, err := g.Accept(scalarRecord(21.5))
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if !res.Accepted || res.RecordsCreated != 1 {
		t.Errorf("Accept() = %+v, want accepted with 1 record", res)
	}
	if got := queue.Depth(); got != 1 {
		t.Errorf("queue depth = %d, want 1", got)
	}
	if got := ring.Len(); got != 0 {
		t.Errorf("ring depth = %d, want 0 (scalars never touch the ring)", got)
	}
	if snap := metrics.Snapshot(); snap.EnqueuedScalar != 1 {
		t.Errorf("EnqueuedScalar = %d, want 1", snap.EnqueuedScalar)
	}

	task := <-queue.Chan()
	queue.MarkDequeued()
	if task.Scalar == nil {
		t.Fatal("queued task carries no scalar payload")
	}
	if task.Scalar.TimeLocal != "2026-05-12T08:30:00Z" {
		t.Errorf("TimeLocal = %q, want the record timestamp", task.Scalar.TimeLocal)
	}
	if task.Scalar.CreatedAt == "" {
		t.Error("CreatedAt missing from queued sample")
	}
}

func TestIngestGateway_QueueFullDropsRecord(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 4
	g, queue, _, metrics := newTestGateway(cfg)

	// With no writer consuming, capacity is hit on the fifth record.
	for i := 0; i < 4; i++ {
		res, err := g.Accept(scalarRecord(float64(i)))
		if err != nil || !res.Accepted {
			t.Fatalf("Accept(%d) = %+v, %v; want accepted", i, res, err)
		}
	}

	res, err := g.Accept(scalarRecord(99))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Accept() on full queue error = %v, want ErrQueueFull", err)
	}
	if res.Accepted || res.RecordsCreated != 0 {
		t.Errorf("Accept() on full queue = %+v, want rejected with 0 records", res)
	}

	snap := metrics.Snapshot()
	if snap.EnqueuedScalar != 4 {
		t.Errorf("EnqueuedScalar = %d, want 4", snap.EnqueuedScalar)
	}
	if snap.DroppedScalar != 1 {
		t.Errorf("DroppedScalar = %d, want 1", snap.DroppedScalar)
	}
	if got := queue.Depth(); got != 4 {
		t.Errorf("queue depth = %d, want 4 (queued records undisturbed)", got)
	}
}

func TestIngestGateway_AcceptAccelBatch(t *testing.T) {
	g, queue, ring, metrics := newTestGateway(testConfig())

	res, err := g.Accept(accelRecord(6))
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if !res.Accepted || res.RecordsCreated != 6 {
		t.Errorf("Accept() = %+v, want accepted with 6 records", res)
	}
	if got := queue.Depth(); got != 1 {
		t.Errorf("queue depth = %d, want 1 (one batch task, not one per sample)", got)
	}
	if got := ring.Len(); got != 6 {
		t.Errorf("ring depth = %d, want 6", got)
	}

	meta, ok := ring.Meta()
	if !ok {
		t.Fatal("ring has no metadata after an accel accept")
	}
	if meta.DeviceID != "vib-01" || meta.SampleCount != 6 || meta.FsHz != 500 {
		t.Errorf("meta = %+v, want device vib-01, 6 samples at 500 Hz", meta)
	}
	if meta.Last != (telemetry.Triplet{5, 10, 15}) {
		t.Errorf("meta.Last = %v, want the newest sample", meta.Last)
	}
	if meta.ChunkStartUS != 1747038600000000 {
		t.Errorf("meta.ChunkStartUS = %d, want the record value", meta.ChunkStartUS)
	}
	if snap := metrics.Snapshot(); snap.EnqueuedAccelBatch != 1 {
		t.Errorf("EnqueuedAccelBatch = %d, want 1", snap.EnqueuedAccelBatch)
	}
}

func TestIngestGateway_AccelTailLimit(t *testing.T) {
	cfg := testConfig()
	cfg.TailLimit = 4
	g, queue, ring, _ := newTestGateway(cfg)

	res, err := g.Accept(accelRecord(10))
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	// Full batch persisted, only the newest tail broadcast.
	if res.RecordsCreated != 10 {
		t.Errorf("RecordsCreated = %d, want 10", res.RecordsCreated)
	}
	task := <-queue.Chan()
	queue.MarkDequeued()
	if got := len(task.Accel.Samples); got != 10 {
		t.Errorf("queued batch carries %d samples, want 10", got)
	}

	if got := ring.Len(); got != 4 {
		t.Fatalf("ring depth = %d, want 4", got)
	}
	tail := ring.PopUpTo(10)
	if tail[0][0] != 6 || tail[3][0] != 9 {
		t.Errorf("ring tail = %v..%v, want samples 6..9", tail[0], tail[3])
	}
}

func TestIngestGateway_RingPushSurvivesQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 1
	g, _, ring, metrics := newTestGateway(cfg)

	if _, err := g.Accept(accelRecord(3)); err != nil {
		t.Fatalf("first Accept() error = %v", err)
	}

	second := accelRecord(2)
	second.ChunkStartUS = 9999
	_, err := g.Accept(second)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Accept() error = %v, want ErrQueueFull", err)
	}

	// The live path is independent: the dropped batch still reached the
	// ring and its metadata won.
	if got := ring.Len(); got != 5 {
		t.Errorf("ring depth = %d, want 5", got)
	}
	meta, _ := ring.Meta()
	if meta.ChunkStartUS != 9999 {
		t.Errorf("meta.ChunkStartUS = %d, want 9999 from the dropped batch", meta.ChunkStartUS)
	}

	snap := metrics.Snapshot()
	if snap.EnqueuedAccelBatch != 1 || snap.DroppedAccelBatch != 1 {
		t.Errorf("accel counters = %d enqueued / %d dropped, want 1/1",
			snap.EnqueuedAccelBatch, snap.DroppedAccelBatch)
	}
}

func TestIngestGateway_RejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name    string
		record  *telemetry.Record
		wantErr error
	}{
		{
			name:    "unknown kind",
			record:  &telemetry.Record{DeviceID: "x", Kind: "humidity_sweep"},
			wantErr: telemetry.ErrUnknownKind,
		},
		{
			name:    "accel with no samples",
			record:  &telemetry.Record{DeviceID: "x", Kind: telemetry.KindAccelBatch, FsHz: 500},
			wantErr: telemetry.ErrEmptyBatch,
		},
		{
			name: "accel with negative sample rate",
			record: &telemetry.Record{
				DeviceID: "x",
				Kind:     telemetry.KindAccelBatch,
				FsHz:     -5,
				Samples:  []telemetry.Triplet{{1, 2, 3}},
			},
			wantErr: telemetry.ErrInvalidSampleRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, queue, ring, metrics := newTestGateway(testConfig())

			res, err := g.Accept(tt.record)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Accept() error = %v, want %v", err, tt.wantErr)
			}
			if res.Accepted {
				t.Error("Accept() accepted an invalid record")
			}
			if queue.Depth() != 0 || ring.Len() != 0 {
				t.Error("invalid record reached the queue or ring")
			}
			snap := metrics.Snapshot()
			if snap.DroppedScalar != 0 || snap.DroppedAccelBatch != 0 {
				t.Error("validation failure counted as a queue drop")
			}
		})
	}
}

func TestIngestGateway_AccelDefaultsSampleRate(t *testing.T) {
	g, queue, ring, _ := newTestGateway(testConfig())

	rec := accelRecord(2)
	rec.FsHz = 0
	if _, err := g.Accept(rec); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	task := <-queue.Chan()
	queue.MarkDequeued()
	if got := task.Accel.FsHz; got != telemetry.DefaultSampleRateHz {
		t.Errorf("queued batch FsHz = %d, want %d", got, telemetry.DefaultSampleRateHz)
	}
	meta, _ := ring.Meta()
	if meta.FsHz != telemetry.DefaultSampleRateHz {
		t.Errorf("meta FsHz = %d, want %d", meta.FsHz, telemetry.DefaultSampleRateHz)
	}
}
