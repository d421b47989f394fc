package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nvalkov/station-core/internal/pipeline"
)

const bytesPerMB = 1 << 20

// SystemMetrics is the /api/v1/metrics response body.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	Pipeline      pipeline.Snapshot `json:"pipeline"`
	WebSocket     WSMetrics         `json:"websocket"`
	MQTT          MQTTMetrics       `json:"mqtt"`
	InfluxDB      InfluxDBMetrics   `json:"influxdb"`
	Database      DatabaseMetrics   `json:"database"`
}

// RuntimeMetrics is the Go process view: goroutines, heap, GC cycles.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics reports hub fan-out state.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics reports the broker link state.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// InfluxDBMetrics reports the time-series mirror link state.
type InfluxDBMetrics struct {
	Connected bool `json:"connected"`
}

// DatabaseMetrics exposes the sql.DB pool counters.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime statistics merged with the pipeline counter
// snapshot. This is the operational view of the ingest path: queue and ring
// depth, drop and commit counters, plus process and connection state.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime:       runtimeStats(),
		Pipeline:      s.pipeline.Snapshot(),
		Database:      s.poolStats(),
	}

	// Optional subsystems report their zero value when absent.
	if s.hub != nil {
		m.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		m.MQTT.Connected = s.mqtt.IsConnected()
	}
	if s.influx != nil {
		m.InfluxDB.Connected = s.influx.IsConnected()
	}

	writeJSON(w, http.StatusOK, m)
}

func runtimeStats() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return RuntimeMetrics{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(ms.Alloc) / bytesPerMB,
		MemoryTotalMB: float64(ms.TotalAlloc) / bytesPerMB,
		NumGC:         ms.NumGC,
	}
}

func (s *Server) poolStats() DatabaseMetrics {
	st := s.db.Stats()
	return DatabaseMetrics{
		OpenConnections: st.OpenConnections,
		InUse:           st.InUse,
		Idle:            st.Idle,
		WaitCount:       st.WaitCount,
	}
}
