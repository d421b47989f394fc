// Package telemetry defines the record types flowing through Station Core.
//
// Two kinds of telemetry arrive from field devices:
//
//   - Scalar samples: low-rate weather readings (temperature, humidity,
//     wind direction and speed), one row per report.
//   - Accel batches: high-rate accelerometer bursts, hundreds to thousands
//     of (x, y, z) triplets sharing one chunk timestamp.
//
// Record is the inbound envelope the ingest boundary receives; it is
// validated and then converted into the storage-shaped ScalarSample or
// AccelBatch. Timestamps travel as RFC 3339 strings end to end, matching
// the TEXT columns they land in.
package telemetry
