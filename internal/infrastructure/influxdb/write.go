package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// WriteScalarSample mirrors one committed weather reading to InfluxDB.
//
// Only the fields the device actually reported become point fields; a
// sample with no measurements is skipped because InfluxDB rejects
// field-less points. The point timestamp is the sample's own reading
// time, so the mirror lines up with the SQLite rows.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - stationID: Identifier of this station (tag, low cardinality)
//   - sample: The committed reading
//
// Example:
//
//	client.WriteScalarSample("station-roof", sample)
func (c *Client) WriteScalarSample(stationID string, sample telemetry.ScalarSample) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if sample.TempC != nil {
		fields["temp_c"] = *sample.TempC
	}
	if sample.HumPct != nil {
		fields["hum_pct"] = *sample.HumPct
	}
	if sample.WindDirDeg != nil {
		fields["wind_dir_deg"] = *sample.WindDirDeg
	}
	if sample.WindDirTxt != nil {
		fields["wind_dir_txt"] = *sample.WindDirTxt
	}
	if sample.WindSpdMS != nil {
		fields["wind_spd_ms"] = *sample.WindSpdMS
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"scalar_samples",
		map[string]string{
			"station_id": stationID,
		},
		fields,
		sampleTime(sample.TimeLocal),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAccelSummary mirrors the summary of one committed accelerometer
// batch to InfluxDB.
//
// The raw triplets stay in SQLite; the mirror records the batch shape
// (count, rate, chunk start) plus the final sample, which is enough for
// rate dashboards and gap detection. The point timestamp is the chunk
// start converted from microseconds.
//
// Parameters:
//   - stationID: Identifier of this station (tag, low cardinality)
//   - batch: The committed batch
func (c *Client) WriteAccelSummary(stationID string, batch telemetry.AccelBatch) {
	if !c.IsConnected() {
		return
	}

	last := batch.LastTriplet()
	fields := map[string]interface{}{
		"sample_count":   len(batch.Samples),
		"fs_hz":          batch.FsHz,
		"chunk_start_us": batch.ChunkStartUS,
		"last_x":         last[0],
		"last_y":         last[1],
		"last_z":         last[2],
	}

	point := write.NewPoint(
		"accel_batches",
		map[string]string{
			"station_id": stationID,
		},
		fields,
		chunkTime(batch.ChunkStartUS),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the telemetry helpers.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "station-01"},
//	    map[string]interface{}{"queue_depth": 120, "goroutines": 14})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// sampleTime parses an RFC3339 reading time, falling back to now for
// anything unparseable so a malformed timestamp never loses the point.
func sampleTime(iso string) time.Time {
	if t, err := time.Parse(time.RFC3339, iso); err == nil {
		return t
	}
	return time.Now()
}

// chunkTime converts a chunk start in microseconds to a point timestamp.
func chunkTime(chunkStartUS int64) time.Time {
	if chunkStartUS <= 0 {
		return time.Now()
	}
	return time.UnixMicro(chunkStartUS)
}
