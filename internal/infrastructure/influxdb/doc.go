// Package influxdb mirrors committed telemetry into InfluxDB.
//
// SQLite stays the system of record; this package feeds a time-series
// copy for dashboards. Scalar weather readings become one point per
// committed sample, accelerometer batches a summary point per chunk
// (shape plus final triplet). The mirror hangs off the pipeline's
// post-commit hook, so only rows that actually reached SQLite are
// mirrored and a slow or absent server never blocks ingestion.
//
// The Client wraps the official influxdb-client-go v2 SDK. Writes go
// through its non-blocking batched API, sized by the batch_size and
// flush_interval config settings; failures surface asynchronously on
// the OnError callback rather than as return values, while Connect and
// HealthCheck report errors directly. All methods are safe for
// concurrent use.
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "station",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteScalarSample("station-roof", sample)
package influxdb
