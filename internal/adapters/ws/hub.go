// Package ws pushes engine state to connected views over WebSocket. The hub
// fans one snapshot stream out to every client; a client that cannot keep up
// is dropped rather than allowed to stall the rest.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/grandstand/cheer/pkg/logger"
	"github.com/grandstand/cheer/pkg/metrics"
)

const defaultSendBuffer = 16

// Event is one typed push to the views.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Event types pushed by the engine.
const (
	EventCounters    = "counters"
	EventSession     = "session"
	EventAchievement = "achievement"
	EventNotice      = "notice"
)

// Hub tracks connected clients and broadcasts engine events to them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	sendBuffer int
	upgrader   websocket.Upgrader
	logger     logger.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-client outbound queue depth.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*client]struct{}),
		sendBuffer: defaultSendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Get().Named("ws"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ServeHTTP upgrades the request and keeps the connection until the client
// goes away. Inbound frames are read and discarded; the stream is push-only.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.sendBuffer)}
	h.add(c)
	defer h.remove(c)

	go c.writeLoop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast marshals the event once and queues it on every client. Clients
// with a full queue are dropped.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(context.Background(), "marshal event", logger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			metrics.UpdateWSClients(len(h.clients))
			h.logger.Warn(context.Background(), "dropping slow websocket client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.UpdateWSClients(0)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	metrics.UpdateWSClients(len(h.clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.UpdateWSClients(len(h.clients))
	}
	h.mu.Unlock()

	c.conn.Close()
}

func (c *client) writeLoop() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
