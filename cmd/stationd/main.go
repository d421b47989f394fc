// Station Core - Telemetry Station Gateway
//
// This is the main entry point for the Station Core daemon. It receives
// weather readings and accelerometer bursts from field devices over HTTP,
// persists them to SQLite in batches, and fans live frames out to
// WebSocket and MQTT consumers, with an optional InfluxDB mirror for
// dashboards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nvalkov/station-core/migrations"

	"github.com/nvalkov/station-core/internal/api"
	"github.com/nvalkov/station-core/internal/infrastructure/config"
	"github.com/nvalkov/station-core/internal/infrastructure/database"
	"github.com/nvalkov/station-core/internal/infrastructure/influxdb"
	"github.com/nvalkov/station-core/internal/infrastructure/logging"
	"github.com/nvalkov/station-core/internal/infrastructure/mqtt"
	"github.com/nvalkov/station-core/internal/pipeline"
	"github.com/nvalkov/station-core/internal/storage"
	"github.com/nvalkov/station-core/internal/telemetry"
)

// Populated through ldflags by the release build, e.g.
// go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when STATION_CONFIG is not set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Shutdown is signal-driven: SIGINT and SIGTERM cancel the root context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the station together and blocks until the context is cancelled.
// Every component it opens is closed by a deferred cleanup, so the reverse
// of the startup order below is the shutdown sequence: API listener first,
// then the pipeline's final flush, the optional mirrors, and the database
// last.
func run(ctx context.Context) error {
	// Bootstrap logger until the config says otherwise.
	log := logging.Default()
	log.Info("starting Station Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "station", cfg.Station.ID)

	log = logging.New(cfg.Logging, version)
	log.Info("logging configured",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeWithLog(log, "database", db.Close)
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied")

	store := storage.NewStore(db.DB)

	mqttClient, err := connectMQTT(cfg.MQTT, log)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	if mqttClient != nil {
		defer closeWithLog(log, "MQTT", mqttClient.Close)
	}

	influxClient, err := connectInflux(cfg.InfluxDB, log)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	if influxClient != nil {
		defer closeWithLog(log, "InfluxDB", influxClient.Close)
	}

	// The WebSocket hub is created before the pipeline because the pipeline
	// broadcaster fans out to it; the API server receives the same hub and
	// skips creating its own.
	hub := api.NewHub(cfg.WebSocket, log)
	broadcaster := buildBroadcaster(hub, mqttClient)

	pl, err := pipeline.New(pipelineConfig(cfg.Pipeline), store, broadcaster, log)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}
	if influxClient != nil {
		pl.SetCommitHook(influxMirror(influxClient, cfg.Station.ID))
	}
	pl.Start()
	defer func() {
		log.Info("stopping pipeline")
		pl.Close()
	}()

	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Pipeline:    pl,
		Store:       store,
		DB:          db,
		MQTT:        mqttClient,
		Influx:      influxClient,
		Hub:         hub,
		Broadcaster: broadcaster,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	go hub.Run(ctx)

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer closeWithLog(log, "API server", apiServer.Close)
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("station ready, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown requested")

	log.Info("Station Core stopped")
	return nil
}

// getConfigPath resolves the config file location. STATION_CONFIG overrides
// the default path.
func getConfigPath() string {
	if path := os.Getenv("STATION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectMQTT dials the broker when the MQTT section is enabled. A nil
// client with a nil error means the broker mirror is switched off.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.Enabled {
		log.Info("MQTT disabled, live frames go to WebSocket clients only")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT reconnected") })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	return client, nil
}

// connectInflux brings up the time-series mirror when the InfluxDB section
// is enabled. A nil client with a nil error means the mirror is off.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	return client, nil
}

// closeWithLog runs one shutdown step, logging the step and any failure.
func closeWithLog(log *logging.Logger, name string, fn func() error) {
	log.Info("closing " + name)
	if err := fn(); err != nil {
		log.Error("shutdown step failed", "component", name, "error", err)
	}
}

// pipelineConfig maps the YAML pipeline section onto the pipeline's tuning
// knobs, converting millisecond fields to durations.
func pipelineConfig(cfg config.PipelineConfig) pipeline.Config {
	return pipeline.Config{
		QueueCapacity:  cfg.QueueCapacity,
		MaxBatchItems:  cfg.MaxBatchItems,
		CommitInterval: cfg.CommitInterval(),
		PollInterval:   cfg.PollInterval(),
		DrainMax:       cfg.DrainMax,
		RingCapacity:   cfg.Broadcast.RingCapacity,
		TailLimit:      cfg.Broadcast.TailLimit,
		EmitInterval:   cfg.Broadcast.EmitInterval(),
		EmitMaxSamples: cfg.Broadcast.EmitMaxSamples,
	}
}

// buildBroadcaster composes the live fan-out. The WebSocket hub always
// receives events; when MQTT is connected, frames are mirrored to the
// per-device telemetry topics as well.
//
// Parameters:
//   - hub: WebSocket hub (always present)
//   - mqttClient: MQTT client, nil when disabled
//
// Returns:
//   - pipeline.Broadcaster: Composite fan-out for the pipeline and API
func buildBroadcaster(hub *api.Hub, mqttClient *mqtt.Client) pipeline.Broadcaster {
	if mqttClient == nil {
		return hub
	}

	mirror := pipeline.BroadcastFunc(func(event string, payload any) error {
		deviceID := telemetryDeviceID(payload)
		if deviceID == "" {
			// Frames without a device identity stay WebSocket-only; MQTT
			// topics are per-device.
			return nil
		}
		return mqttClient.PublishTelemetry(event, deviceID, payload)
	})

	return pipeline.Fanout(hub, mirror)
}

// telemetryDeviceID extracts the originating device from a live event
// payload.
func telemetryDeviceID(payload any) string {
	switch p := payload.(type) {
	case pipeline.ScalarEvent:
		return p.DeviceID
	case pipeline.AccelEvent:
		return p.DeviceID
	default:
		return ""
	}
}

// influxMirror returns a commit hook that mirrors committed rows to
// InfluxDB. The hook runs on the writer goroutine after each successful
// SQLite commit, so the mirror only ever sees persisted data; writes are
// batched and asynchronous inside the client.
func influxMirror(client *influxdb.Client, stationID string) pipeline.CommitHook {
	return func(scalars []telemetry.ScalarSample, batches []telemetry.AccelBatch) {
		for _, sample := range scalars {
			client.WriteScalarSample(stationID, sample)
		}
		for _, batch := range batches {
			client.WriteAccelSummary(stationID, batch)
		}
	}
}

// healthCheck pings every connected backend once at startup.
//
// Parameters:
//   - ctx: Deadline for the checks
//   - db: Always present
//   - mqttClient, influxClient: Checked only when connected, nil when the
//     subsystem is disabled
//
// Returns:
//   - error: The first failing check, nil when everything answers
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
