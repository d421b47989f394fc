package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nvalkov/station-core/internal/infrastructure/config"
)

// Client is the station's connection to the MQTT broker. It layers
// three things over paho: session state the rest of the process can
// query, subscription replay after reconnects, and retained status
// announcements (online on connect, offline via LWT or Close).
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// subs holds active subscriptions keyed by topic so the set can be
	// replayed when the broker session is re-established.
	subs   map[string]subscription
	subsMu sync.RWMutex

	// connected is this wrapper's view of the session. It is set once
	// Connect succeeds, flipped by the paho connect and connection-lost
	// callbacks, and cleared by Close.
	connected bool
	stateMu   sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	cbMu         sync.RWMutex

	logger Logger
	logMu  sync.RWMutex
}

// Logger receives handler failures and recovered panics. Satisfied by
// logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect dials the broker described by cfg and returns a ready client.
//
// The session carries a Last Will on station/status/<client_id> so
// subscribers learn about unexpected drops, and paho's auto-reconnect
// is enabled with backoff between the configured delays. On every
// successful (re)connect the client replays its subscriptions and
// publishes a retained online status.
//
// Parameters:
//   - cfg: MQTT section of the station config
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed if the handshake times out or is refused
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.brokerConnected()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.brokerLost(err)
	})

	c.client = pahomqtt.NewClient(opts)
	if err := waitToken(c.client.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The paho connect callback runs asynchronously and may not have
	// fired yet. Mark the session up here so IsConnected holds as soon
	// as Connect returns; the callback still handles subscription
	// replay and the online announcement.
	c.stateMu.Lock()
	c.connected = true
	c.stateMu.Unlock()

	return c, nil
}

// brokerConnected runs on the paho connect callback, on the initial
// connect and after every reconnect.
func (c *Client) brokerConnected() {
	c.stateMu.Lock()
	c.connected = true
	c.stateMu.Unlock()

	c.replaySubscriptions()
	c.announceOnline()

	c.cbMu.RLock()
	cb := c.onConnect
	c.cbMu.RUnlock()
	if cb != nil {
		cb()
	}
}

// brokerLost runs on the paho connection-lost callback.
func (c *Client) brokerLost(err error) {
	c.stateMu.Lock()
	c.connected = false
	c.stateMu.Unlock()

	c.cbMu.RLock()
	cb := c.onDisconnect
	c.cbMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// announceOnline publishes the retained online status for this client.
func (c *Client) announceOnline() {
	topic := Topics{}.Status(c.cfg.Broker.ClientID)
	payload := statusPayload(c.cfg.Broker.ClientID, statusOnline, "")
	c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// Close disconnects from the broker. A clean disconnect discards the
// Last Will, so Close first replaces the retained online status with a
// graceful offline message, then gives pending operations a quiesce
// period before dropping the connection.
//
// Returns:
//   - error: Always nil today; kept for symmetry across the
//     infrastructure clients
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := Topics{}.Status(c.cfg.Broker.ClientID)
		payload := statusPayload(c.cfg.Broker.ClientID, statusOffline, reasonGracefulShutdown)
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(ackTimeout)
	}

	c.client.Disconnect(disconnectQuiesceMs)

	c.stateMu.Lock()
	c.connected = false
	c.stateMu.Unlock()

	return nil
}

// HealthCheck reports whether the broker session is alive.
//
// Parameters:
//   - ctx: Cancellation only; no broker round-trip is made
//
// Returns:
//   - error: nil when connected, ErrNotConnected otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the last known session state. Both this wrapper
// and paho must agree the session is up.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback invoked after the initial connect
// and after every reconnect, once subscriptions have been replayed.
func (c *Client) SetOnConnect(callback func()) {
	c.cbMu.Lock()
	c.onConnect = callback
	c.cbMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the session drops.
// The error describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.cbMu.Lock()
	c.onDisconnect = callback
	c.cbMu.Unlock()
}

// SetLogger routes handler errors and recovered panics to logger.
// Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.logMu.Lock()
	c.logger = logger
	c.logMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	return c.logger
}

// waitToken blocks on a paho token until timeout and maps both timeout
// and operation failure onto sentinel.
func waitToken(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
