package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nvalkov/station-core/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial broker handshake.
	connectTimeout = 10 * time.Second

	// ackTimeout bounds the wait for publish, subscribe, and
	// unsubscribe acknowledgements.
	ackTimeout = 5 * time.Second

	// disconnectQuiesceMs is how long Disconnect waits for in-flight
	// work, in milliseconds as paho expects.
	disconnectQuiesceMs = 1000

	// keepAlive is the PINGREQ interval used to detect dead connections.
	keepAlive = 60 * time.Second

	// maxQoS is the highest QoS level MQTT defines.
	maxQoS = 2

	// tlsMinVersion applies whenever the broker connection uses TLS.
	tlsMinVersion = tls.VersionTLS12
)

// Status announcement vocabulary for the client status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonGracefulShutdown     = "graceful_shutdown"
	reasonUnexpectedDisconnect = "unexpected_disconnect"
)

// brokerURL renders the paho broker address for cfg. The scheme follows
// the TLS flag: ssl:// when enabled, plain tcp:// otherwise.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions assembles paho options from the station config:
// broker address and client identity, credentials when provided, TLS
// when enabled, and auto-reconnect backed off between the configured
// initial and maximum delays.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Fresh session per process. Frames queued by the broker for a
	// previous run are stale by the time the station restarts.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT registers the Last Will so the broker announces an
// unexpected drop on the client's status topic. The will is retained at
// QoS 1: a late subscriber must see the crash status rather than a
// stale online message.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	topic := Topics{}.Status(clientID)
	opts.SetWill(topic, statusPayload(clientID, statusOffline, reasonUnexpectedDisconnect), 1, true)
}

// statusPayload renders a status announcement for a client status
// topic. The reason field is included only when non-empty, so online
// messages stay minimal.
func statusPayload(clientID, status, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`, status, clientID, ts)
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`,
		status, clientID, reason, ts)
}
