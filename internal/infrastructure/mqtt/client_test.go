package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nvalkov/station-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
//
// These tests exercise input validation, option assembly, topic building,
// and payload construction, none of which require a broker. Broker
// round-trip tests live in integration_test.go behind the integration tag.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "station-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// newDisconnectedClient returns a client that has never connected.
// Publish, Subscribe, and Unsubscribe validate their inputs and check
// connection state before touching the broker, so every rejection path
// is reachable offline.
func newDisconnectedClient() *Client {
	return &Client{
		cfg:  testConfig(),
		subs: make(map[string]subscription),
	}
}

// =============================================================================
// Connection State Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := newDisconnectedClient()

	if client.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := newDisconnectedClient()

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := newDisconnectedClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublishEmptyTopic(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Publish("", []byte("test"), 1, false)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishInvalidQoS(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Publish("station/test", []byte("test"), 3, false)
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublishOversizedPayload(t *testing.T) {
	client := newDisconnectedClient()

	payload := make([]byte, maxPayloadSize+1)
	err := client.Publish("station/test", payload, 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Publish("station/test", []byte("test"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishStringDisconnected(t *testing.T) {
	client := newDisconnectedClient()

	err := client.PublishString("station/test", "test", 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishString() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishRetainedDisconnected(t *testing.T) {
	client := newDisconnectedClient()

	err := client.PublishRetained("station/test", []byte("test"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishRetained() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribeEmptyTopic(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Subscribe("", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribeInvalidQoS(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Subscribe("station/test", 3, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Subscribe("station/test", 1, nil)
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscribeDisconnected(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Subscribe("station/test", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribe, want 0", client.SubscriptionCount())
	}
}

func TestUnsubscribeEmptyTopic(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Unsubscribe("")
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestUnsubscribeDisconnected(t *testing.T) {
	client := newDisconnectedClient()

	err := client.Unsubscribe("station/test")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := newDisconnectedClient()

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := newDisconnectedClient()

	if client.HasSubscription("station/telemetry/#") {
		t.Error("HasSubscription() = true for topic never subscribed")
	}
}

// =============================================================================
// Telemetry Publishing Tests
// =============================================================================

func TestPublishTelemetry_UnknownEvent(t *testing.T) {
	client := newDisconnectedClient()

	err := client.PublishTelemetry("humidity_sweep", "bench-01", map[string]int{"x": 1})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishTelemetry() error = %v, want ErrPublishFailed", err)
	}
	if err != nil && !strings.Contains(err.Error(), "unknown telemetry event") {
		t.Errorf("PublishTelemetry() error = %v, want mention of unknown event", err)
	}
}

func TestPublishTelemetry_EmptyDeviceID(t *testing.T) {
	client := newDisconnectedClient()

	err := client.PublishTelemetry(EventScalarData, "", map[string]int{"x": 1})
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("PublishTelemetry() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishTelemetry_UnmarshalablePayload(t *testing.T) {
	client := newDisconnectedClient()

	err := client.PublishTelemetry(EventScalarData, "bench-01", make(chan int))
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishTelemetry() error = %v, want ErrPublishFailed", err)
	}
}

// TestPublishTelemetry_Disconnected verifies both event names route past
// validation to the connection check.
func TestPublishTelemetry_Disconnected(t *testing.T) {
	events := []string{EventScalarData, EventAccelData}

	for _, event := range events {
		t.Run(event, func(t *testing.T) {
			client := newDisconnectedClient()

			err := client.PublishTelemetry(event, "bench-01", map[string]int{"x": 1})
			if !errors.Is(err, ErrNotConnected) {
				t.Errorf("PublishTelemetry(%s) error = %v, want ErrNotConnected", event, err)
			}
		})
	}
}

// =============================================================================
// Topic Builder Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "TelemetryScalar",
			builder: func() string {
				return Topics{}.TelemetryScalar("bench-01")
			},
			expected: "station/telemetry/scalar/bench-01",
		},
		{
			name: "TelemetryAccel",
			builder: func() string {
				return Topics{}.TelemetryAccel("vib-01")
			},
			expected: "station/telemetry/accel/vib-01",
		},
		{
			name: "Status",
			builder: func() string {
				return Topics{}.Status("station-core-01")
			},
			expected: "station/status/station-core-01",
		},
		{
			name: "AllTelemetry",
			builder: func() string {
				return Topics{}.AllTelemetry()
			},
			expected: "station/telemetry/#",
		},
		{
			name: "AllScalar",
			builder: func() string {
				return Topics{}.AllScalar()
			},
			expected: "station/telemetry/scalar/+",
		},
		{
			name: "AllAccel",
			builder: func() string {
				return Topics{}.AllAccel()
			},
			expected: "station/telemetry/accel/+",
		},
		{
			name: "AllStatus",
			builder: func() string {
				return Topics{}.AllStatus()
			},
			expected: "station/status/+",
		},
		{
			name: "AllTopics",
			builder: func() string {
				return Topics{}.AllTopics()
			},
			expected: "station/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

// =============================================================================
// Option Assembly Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain tcp", func(t *testing.T) {
		cfg := testConfig()

		opts := buildClientOptions(cfg)

		if len(opts.Servers) != 1 {
			t.Fatalf("Servers count = %d, want 1", len(opts.Servers))
		}
		if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
			t.Errorf("broker URL = %q, want %q", got, "tcp://127.0.0.1:1883")
		}
		if opts.ClientID != "station-test" {
			t.Errorf("ClientID = %q, want %q", opts.ClientID, "station-test")
		}
		if !opts.CleanSession {
			t.Error("CleanSession = false, want true")
		}
		if !opts.AutoReconnect {
			t.Error("AutoReconnect = false, want true")
		}
		if opts.ConnectRetryInterval != 1*time.Second {
			t.Errorf("ConnectRetryInterval = %v, want 1s", opts.ConnectRetryInterval)
		}
		if opts.MaxReconnectInterval != 5*time.Second {
			t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
		}
		if opts.TLSConfig != nil {
			t.Error("TLSConfig set without TLS enabled")
		}
	})

	t.Run("ssl with TLS enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.TLS = true
		cfg.Broker.Port = 8883

		opts := buildClientOptions(cfg)

		if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:8883" {
			t.Errorf("broker URL = %q, want %q", got, "ssl://127.0.0.1:8883")
		}
		if opts.TLSConfig == nil {
			t.Fatal("TLSConfig = nil with TLS enabled")
		}
		if opts.TLSConfig.MinVersion != tlsMinVersion {
			t.Errorf("TLS MinVersion = %d, want %d", opts.TLSConfig.MinVersion, tlsMinVersion)
		}
	})

	t.Run("credentials applied", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth.Username = "station"
		cfg.Auth.Password = "secret"

		opts := buildClientOptions(cfg)

		if opts.Username != "station" {
			t.Errorf("Username = %q, want %q", opts.Username, "station")
		}
		if opts.Password != "secret" {
			t.Errorf("Password = %q, want %q", opts.Password, "secret")
		}
	})

	t.Run("anonymous leaves credentials empty", func(t *testing.T) {
		opts := buildClientOptions(testConfig())

		if opts.Username != "" {
			t.Errorf("Username = %q, want empty", opts.Username)
		}
	})
}

// =============================================================================
// Status Payload Tests
// =============================================================================

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()

	configureLWT(opts, "station-core-01")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false after configureLWT()")
	}
	if opts.WillTopic != "station/status/station-core-01" {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, "station/status/station-core-01")
	}
	if opts.WillQos != 1 {
		t.Errorf("WillQos = %d, want 1", opts.WillQos)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var status struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("WillPayload is not valid JSON: %v", err)
	}
	if status.Status != "offline" {
		t.Errorf("status = %q, want %q", status.Status, "offline")
	}
	if status.ClientID != "station-core-01" {
		t.Errorf("client_id = %q, want %q", status.ClientID, "station-core-01")
	}
	if status.Reason != "unexpected_disconnect" {
		t.Errorf("reason = %q, want %q", status.Reason, "unexpected_disconnect")
	}
	if _, err := time.Parse(time.RFC3339, status.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", status.Timestamp, err)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus string
		wantReason string
	}{
		{
			name:       "online",
			payload:    statusPayload("station-core-01", statusOnline, ""),
			wantStatus: "online",
			wantReason: "",
		},
		{
			name:       "graceful offline",
			payload:    statusPayload("station-core-01", statusOffline, reasonGracefulShutdown),
			wantStatus: "offline",
			wantReason: "graceful_shutdown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status struct {
				Status   string `json:"status"`
				ClientID string `json:"client_id"`
				Reason   string `json:"reason"`
			}
			if err := json.Unmarshal([]byte(tt.payload), &status); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if status.ClientID != "station-core-01" {
				t.Errorf("client_id = %q, want %q", status.ClientID, "station-core-01")
			}
			if status.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", status.Reason, tt.wantReason)
			}
		})
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandler_PanicRecovery(t *testing.T) {
	client := newDisconnectedClient()
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("handler exploded")
	})

	// Must not propagate the panic.
	wrapped(nil, testMessage{topic: "station/telemetry/scalar/bench-01"})

	if logger.errorCount() != 1 {
		t.Errorf("logged errors = %d, want 1", logger.errorCount())
	}
}

func TestWrapHandler_HandlerError(t *testing.T) {
	client := newDisconnectedClient()
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("bad frame")
	})

	wrapped(nil, testMessage{topic: "station/telemetry/accel/vib-01"})

	if logger.warnCount() != 1 {
		t.Errorf("logged warnings = %d, want 1", logger.warnCount())
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := newDisconnectedClient()

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("handler exploded")
	})

	// Panic recovery must not require a logger.
	wrapped(nil, testMessage{topic: "station/telemetry/scalar/bench-01"})
}

func TestSetLogger(t *testing.T) {
	client := newDisconnectedClient()
	logger := &mockLogger{}

	client.SetLogger(logger)
	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}

	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}

// =============================================================================
// Test Doubles
// =============================================================================

// mockLogger implements Logger for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

// testMessage implements pahomqtt.Message for handler tests.
type testMessage struct {
	topic   string
	payload []byte
}

func (m testMessage) Duplicate() bool   { return false }
func (m testMessage) Qos() byte         { return 0 }
func (m testMessage) Retained() bool    { return false }
func (m testMessage) Topic() string     { return m.topic }
func (m testMessage) MessageID() uint16 { return 0 }
func (m testMessage) Payload() []byte   { return m.payload }
func (m testMessage) Ack()              {}
