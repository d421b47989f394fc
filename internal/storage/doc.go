// Package storage persists telemetry to SQLite and serves the browse
// queries behind the HTTP API.
//
// The write side is narrow: CommitBatch inserts a whole drained batch in
// one transaction, and the batch writer goroutine is its only caller.
// Read queries run on the same single-connection pool; WAL journaling
// keeps them from blocking behind commits.
//
// Acceleration batches are stored one row per batch with the sample
// payload as a JSON column; sample_count is denormalised so listing
// never decodes the payload.
package storage
