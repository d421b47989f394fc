package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nvalkov/station-core/internal/infrastructure/config"
	"github.com/nvalkov/station-core/internal/infrastructure/logging"
)

// Frame types spoken on the live telemetry socket. Clients send subscribe,
// unsubscribe and ping; the server answers with response, pong and error,
// pushes telemetry as event frames, and opens every connection with a
// welcome frame.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
	WSTypeWelcome     = "connection_response"
)

const (
	// wsSendBufferSize caps the frames queued per client. A reader that
	// falls further behind than this loses event frames instead of
	// stalling the emitter.
	wsSendBufferSize = 256

	// wsIOBufferSize is the gorilla read and write buffer size for an
	// upgraded connection.
	wsIOBufferSize = 1024
)

// WSMessage is the frame shape used in both directions. Type selects the
// meaning, ID carries the client's correlation ID back on responses, and
// EventType names the channel on event frames.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists the channels a subscribe or unsubscribe frame
// applies to.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub manages WebSocket connections and fans live telemetry out to them.
// It implements the pipeline Broadcaster interface, so the throttled emitter
// publishes accel frames straight into it.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one upgraded connection. The read pump owns reads on conn, the
// write pump owns writes, and the hub owns the lifecycle of send.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
	id            string // appears in logs and the welcome frame
}

// upgrader performs the HTTP to WebSocket handshake. Origins are not vetted
// here; the CORS middleware has already dealt with browser requests by the
// time the upgrade runs.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsIOBufferSize,
	WriteBufferSize: wsIOBufferSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates a hub with no connected clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run parks until the context is cancelled, then disconnects every client.
// The hub has no central loop; registration and delivery are lock-based.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client_id", client.id, "clients", h.ClientCount())
}

// Unregister drops a client and, when this call is the one that removed it
// from the map, closes the send channel. Keeping a single closer stops a
// disconnect racing shutdown from double-closing the channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if present {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "client_id", client.id, "clients", h.ClientCount())
}

// Publish sends an event to every client subscribed to its channel. It is
// the Broadcaster implementation backing both the emitter's accel frames and
// the ingest handler's scalar events.
//
// Delivery is best-effort per client: a slow reader's full buffer drops the
// frame rather than blocking the caller. Only a marshal failure is an error.
func (h *Hub) Publish(event string, payload any) error {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", event, err)
	}

	delivered := 0
	for _, client := range h.snapshot() {
		if client.isSubscribed(event) {
			client.trySend(data)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("event published", "event", event, "recipients", delivered)
	}
	return nil
}

// snapshot copies the client set out from under the hub lock so delivery
// never holds it. Clients that disconnect between the copy and the send are
// absorbed by trySend.
func (h *Hub) snapshot() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll tears down every remaining connection at shutdown. Closing the
// send channels lets the write pumps drain and exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection and attaches the client to
// the hub. The auth middleware has already checked the key; browser clients
// pass it as an api_key query parameter since they cannot set headers on a
// WebSocket dial.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn)
	s.hub.Register(client)

	// Queue the welcome before the pumps start so it is always the first
	// frame the client reads.
	client.sendControl("", WSTypeWelcome, map[string]any{
		"status":    "connected",
		"client_id": client.id,
		"message":   "Station Core live telemetry",
	})

	go client.writePump()
	go client.readPump()
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		id:            uuid.NewString(),
	}
}

// idleWindow is how long the connection may stay silent before the read
// pump gives up on it: one ping interval plus the grace period for the pong.
func (c *WSClient) idleWindow() time.Duration {
	return time.Duration(c.hub.cfg.PingInterval+c.hub.cfg.PongTimeout) * time.Second
}

// readPump consumes frames from the connection until it drops, then detaches
// the client from the hub.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Data frames count as liveness too, not just pongs.
		c.extendReadDeadline()
		c.handleFrame(frame)
	}
}

func (c *WSClient) extendReadDeadline() {
	//nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetReadDeadline(time.Now().Add(c.idleWindow()))
}

// writePump drains the send queue onto the connection and keeps the client
// alive with protocol pings. It exits when the hub closes the queue or a
// write fails.
func (c *WSClient) writePump() {
	pinger := time.NewTicker(time.Duration(c.hub.cfg.PingInterval) * time.Second)
	defer func() {
		pinger.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, open := <-c.send:
			if !open {
				// The hub dropped this client; say goodbye and stop.
				//nolint:errcheck // best-effort close frame
				c.writeFrame(websocket.CloseMessage, nil)
				return
			}
			if err := c.writeFrame(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-pinger.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeFrame writes one frame with the configured per-write budget.
func (c *WSClient) writeFrame(messageType int, data []byte) error {
	wait := time.Duration(c.hub.cfg.PongTimeout) * time.Second
	//nolint:errcheck // a failed deadline surfaces on the write itself
	c.conn.SetWriteDeadline(time.Now().Add(wait))
	return c.conn.WriteMessage(messageType, data)
}

// handleFrame dispatches one frame received from the client.
func (c *WSClient) handleFrame(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.sendControl(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions applies a subscribe or unsubscribe frame. Channels are
// the pipeline event names: scalar_data, accel_data. Unknown names are
// accepted and simply never fire.
func (c *WSClient) updateSubscriptions(msg WSMessage, subscribe bool) {
	channels, err := decodeChannels(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	if subscribe {
		c.hub.logger.Info("websocket client subscribed", "client_id", c.id, "channels", channels)
		c.sendControl(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})
		return
	}
	c.sendControl(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

// decodeChannels re-decodes the generic payload field into a channel list.
// The payload arrives as whatever json.Unmarshal produced for an any field,
// so it takes one marshal round trip to land in the typed struct.
func decodeChannels(payload any) ([]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.New("invalid payload")
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, errors.New("invalid channels payload")
	}
	return sub.Channels, nil
}

// isSubscribed reports whether the client asked for frames on channel.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend queues a frame for the write pump without ever blocking. Frames
// are dropped when the buffer is full, and the recover absorbs the panic
// from queueing into a channel the hub closed mid-broadcast.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		_ = recover()
	}()

	select {
	case c.send <- data:
	default:
	}
}

// sendControl queues a welcome, response, pong or error frame. Marshal
// failures are swallowed; every payload built here is a plain map.
func (c *WSClient) sendControl(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendControl(id, WSTypeError, map[string]string{"message": message})
}
