// Package pipeline implements the asynchronous ingestion core of Station Core.
//
// Telemetry accepted at the boundary is never persisted or broadcast inline.
// Instead two bounded buffers decouple the request path from the slow paths:
//
//	IngestGateway ──► WriteQueue ──► BatchWriter ──► Store (one tx per flush)
//	      │
//	      └────────► BroadcastBuffer ──► ThrottledEmitter ──► Broadcaster
//
// The write queue is a fixed-capacity FIFO that rejects rather than blocks:
// when persistence falls behind, new work is shed and counted, and the
// device sees accepted=false. The broadcast ring keeps only the most recent
// samples, evicting the oldest on overflow, and the emitter republishes them
// on a fixed tick so fan-out frequency and message size stay bounded no
// matter how bursty the input is.
//
// # Failure isolation
//
// A failed commit drops that batch and the writer keeps running
// (at-most-once persistence); a failed publish is discarded and the emitter
// keeps ticking. Neither failure propagates to request handlers. Degradation
// is visible only through the metrics registry: rising drop counters, a
// lagging last_commit, a growing failed_commits count.
//
// # Lifecycle
//
// Construct one Pipeline per process with New, call Start once, and Close on
// shutdown. Close stops the emitter, then the writer; the writer performs
// one final flush of buffered items before its goroutine exits, and Close
// does not return until both workers have joined.
package pipeline
