package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/metrics"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Hub fans call log events out to connected dashboards.
// It is registered as an analytics.Observer, so Observe never blocks.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

type outgoingMessage struct {
	Type      string           `json:"type"`
	ClientID  string           `json:"clientId,omitempty"`
	Event     *analytics.Event `json:"event,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// NewHub creates an empty hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		metrics: m,
		logger:  logging.Component("monitor"),
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws/monitor", h.handleWebSocket)
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Observe implements analytics.Observer. Slow clients miss events instead of stalling the sink.
func (h *Hub) Observe(e analytics.Event) {
	payload, err := json.Marshal(outgoingMessage{Type: "event", Event: &e, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode monitor event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Debug().Str("client", c.id).Msg("monitor client lagging, event skipped")
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
		h.metrics.MonitorDisconnected()
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("monitor upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	hello, _ := json.Marshal(outgoingMessage{Type: "connected", ClientID: c.id, Timestamp: time.Now().UnixMilli()})
	c.send <- hello

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.metrics.MonitorConnected()
	h.logger.Info().Str("client", c.id).Msg("monitor connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client", c.id).Msg("monitor read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, present := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if present {
		c.close()
		h.metrics.MonitorDisconnected()
		h.logger.Info().Str("client", c.id).Msg("monitor disconnected")
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}
