package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 64

	// recentOnConnect is how many alerts a new client receives first.
	recentOnConnect = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// RecentFunc returns up to limit recent alerts, newest first.
type RecentFunc func(limit int) []telemetry.Alert

// StatsFunc returns the payload of the periodic stats message.
type StatsFunc func() interface{}

// Hub manages WebSocket clients and pushes alerts to them.
type Hub struct {
	recent   RecentFunc
	stats    StatsFunc
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub. recent and stats may be nil.
func New(recent RecentFunc, stats StatsFunc, interval time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		recent:   recent,
		stats:    stats,
		interval: interval,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

// Run sends a stats message every interval. It blocks until ctx is
// cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if h.stats != nil {
				h.broadcast(Message{Event: "stats", Data: h.stats()})
			}
		}
	}
}

// Persist pushes a to every connected client. It never fails, so the Hub can
// sit in a sink fan-out.
func (h *Hub) Persist(_ context.Context, a telemetry.Alert) error {
	h.broadcast(Message{Event: "alert", Data: a})
	return nil
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}

	if h.recent != nil {
		if data, err := json.Marshal(Message{Event: "recent", Data: h.recent(recentOnConnect)}); err == nil {
			c.send <- data
		}
	}
	h.register(c)
	defer h.unregister(c)

	h.logger.Debug("ws: client connected", zap.String("remote", r.RemoteAddr))
	go c.writePump()
	c.readPump()
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws: marshal message", zap.String("event", msg.Event), zap.Error(err))
		return
	}

	// Sends are non-blocking, so they happen under the read lock; unregister
	// cannot close a channel mid-send.
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("ws: client too slow, disconnecting", zap.String("remote", c.conn.RemoteAddr().String()))
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames to process control messages (pong, close) and detect
// disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
