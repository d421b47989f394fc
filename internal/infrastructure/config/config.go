package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the station configuration, one struct per YAML
// section. Values come from defaults, then the file, then STATION_*
// environment variables.
type Config struct {
	Station   StationConfig   `yaml:"station"`
	Database  DatabaseConfig  `yaml:"database"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// StationConfig identifies the monitoring station this instance serves.
type StationConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig maps to the SQLite settings passed through to database.Open.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PipelineConfig contains ingestion pipeline tuning.
//
// Intervals are in milliseconds. The defaults match the sustained rates the
// station hardware produces (one scalar reading per second per sensor, accel
// bursts of a few thousand samples).
type PipelineConfig struct {
	QueueCapacity    int             `yaml:"queue_capacity"`
	MaxBatchItems    int             `yaml:"max_batch_items"`
	CommitIntervalMS int             `yaml:"commit_interval_ms"`
	DrainMax         int             `yaml:"drain_max"`
	PollIntervalMS   int             `yaml:"poll_interval_ms"`
	Broadcast        BroadcastConfig `yaml:"broadcast"`
}

// BroadcastConfig contains live fan-out tuning for the accel ring buffer
// and the throttled emitter.
type BroadcastConfig struct {
	RingCapacity   int `yaml:"ring_capacity"`
	TailLimit      int `yaml:"tail_limit"`
	EmitIntervalMS int `yaml:"emit_interval_ms"`
	EmitMaxSamples int `yaml:"emit_max_samples"`
}

// MQTTConfig is the optional broker link. Enabled false leaves the station
// publishing to WebSocket clients only.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig locates the broker.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig shapes the backoff after a lost broker connection,
// delays in seconds, zero max_attempts meaning retry forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig shapes the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig points at the certificate pair when the listener serves HTTPS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds the http.Server timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists what the browser dashboard is allowed to send.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the live telemetry socket. Intervals and the pong
// timeout are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig is the optional long-term mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level, format and destination for slog output.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig is used when logging.output is "file".
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig carries the shared API key every device and dashboard
// authenticates with, plus the per-IP rate limit.
type SecurityConfig struct {
	APIKey    string          `yaml:"api_key"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads the YAML file at path on top of the built-in defaults, lets
// STATION_* environment variables override both, and validates the result.
// A station never starts on a config that fails validation.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig is the baseline a config file edits. MQTT and InfluxDB
// default to disabled; the API key has no default on purpose.
func defaultConfig() *Config {
	return &Config{
		Station: StationConfig{
			ID:       "station-001",
			Name:     "Station Core",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/station.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Pipeline: PipelineConfig{
			QueueCapacity:    50000,
			MaxBatchItems:    5000,
			CommitIntervalMS: 1000,
			DrainMax:         512,
			PollIntervalMS:   100,
			Broadcast: BroadcastConfig{
				RingCapacity:   8192,
				TailLimit:      1000,
				EmitIntervalMS: 100,
				EmitMaxSamples: 500,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "station-core",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 100,
			},
		},
	}
}

// applyEnvOverrides lets deployment secrets and paths come from the
// environment instead of the file. Only set variables take effect.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"STATION_DATABASE_PATH":  &cfg.Database.Path,
		"STATION_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"STATION_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"STATION_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"STATION_API_HOST":       &cfg.API.Host,
		"STATION_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"STATION_API_KEY":        &cfg.Security.APIKey,
	}
	for name, dst := range overrides {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

// Validate collects every problem at once so an operator fixes the file in
// one round trip rather than one restart per mistake.
func (c *Config) Validate() error {
	var errs []string
	need := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	need(c.Station.ID != "", "station.id is required")
	need(c.Database.Path != "", "database.path is required")

	need(c.Pipeline.QueueCapacity >= 1, "pipeline.queue_capacity must be at least 1")
	need(c.Pipeline.MaxBatchItems >= 1, "pipeline.max_batch_items must be at least 1")
	need(c.Pipeline.CommitIntervalMS >= 1, "pipeline.commit_interval_ms must be at least 1")
	need(c.Pipeline.PollIntervalMS >= 1, "pipeline.poll_interval_ms must be at least 1")
	need(c.Pipeline.Broadcast.RingCapacity >= 1, "pipeline.broadcast.ring_capacity must be at least 1")
	need(c.Pipeline.Broadcast.EmitMaxSamples >= 1, "pipeline.broadcast.emit_max_samples must be at least 1")

	need(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	need(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")

	// The shared key is the only thing between the station and anyone who
	// can reach the port.
	const minAPIKeyLength = 8
	switch {
	case c.Security.APIKey == "":
		errs = append(errs, "security.api_key is required (set STATION_API_KEY environment variable)")
	case len(c.Security.APIKey) < minAPIKeyLength:
		errs = append(errs, "security.api_key must be at least 8 characters")
	}

	if c.Security.RateLimit.Enabled {
		need(c.Security.RateLimit.RequestsPerMinute >= 1,
			"security.rate_limit.requests_per_minute must be at least 1 when rate limiting is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns api.timeouts.read as a time.Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns api.timeouts.write as a time.Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns api.timeouts.idle as a time.Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// CommitInterval returns the batch writer commit interval as a Duration.
func (p PipelineConfig) CommitInterval() time.Duration {
	return time.Duration(p.CommitIntervalMS) * time.Millisecond
}

// PollInterval returns the batch writer queue poll interval as a Duration.
func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// EmitInterval returns the broadcast emitter tick interval as a Duration.
func (b BroadcastConfig) EmitInterval() time.Duration {
	return time.Duration(b.EmitIntervalMS) * time.Millisecond
}
