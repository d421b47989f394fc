// Package api implements the HTTP ingest boundary and WebSocket server for
// Station Core.
//
// The surface:
//   - POST /ingest for device telemetry (scalar readings and accel batches)
//   - REST endpoints for browsing and exporting stored samples
//   - a WebSocket hub for live telemetry broadcasts
//   - API key authentication on device and browse routes
//   - a middleware chain (request ID, logging, recovery, CORS, body limit,
//     optional per-IP rate limiting)
//   - optional TLS on the listener
//
// # Architecture
//
// The API server is glue around the ingestion pipeline. Inbound records go
// straight to pipeline.Accept and the handler reports the outcome; it never
// blocks on persistence. Live telemetry flows the other way: the pipeline
// publishes events through a Broadcaster and the hub fans them out to
// subscribed WebSocket clients.
//
// # Security
//
// Authentication is a shared API key carried in the X-API-Key header, with
// an api_key query parameter fallback for WebSocket clients that cannot set
// headers. An empty configured key disables the check for development.
//
// # Graceful Degradation
//
// The server operates without MQTT or InfluxDB. Their connection state is
// reported in /api/v1/metrics but no endpoint depends on either.
package api
