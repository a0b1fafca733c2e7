package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dverney/marketsim/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBufSize  = 256
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEnvelope wraps every outbound event with its channel name.
type wsEnvelope struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// subscribeRequest is the only inbound message clients send.
type subscribeRequest struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	Channel string `json:"channel"`
}

// Hub fans price and fill events out to WebSocket subscribers. It
// satisfies engine.Publisher. Delivery is best-effort: a client whose
// buffer is full misses the message, and nothing upstream notices;
// committed state is the source of truth, events are a convenience.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]bool),
	}
}

// PublishPriceUpdate broadcasts a price event on the exchange's price
// channel.
func (h *Hub) PublishPriceUpdate(ev domain.PriceUpdateEvent) {
	h.broadcast("prices:"+ev.ExchangeID, ev)
}

// PublishOrderFill broadcasts a fill event on the exchange's fill
// channel.
func (h *Hub) PublishOrderFill(ev domain.OrderFillEvent) {
	h.broadcast("fills:"+ev.ExchangeID, ev)
}

func (h *Hub) broadcast(channel string, data any) {
	msg, err := json.Marshal(wsEnvelope{Channel: channel, Data: data})
	if err != nil {
		h.logger.Warn("event marshal failed", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(channel) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// Buffer full; the client misses this message.
		}
	}
}

// ServeWS handles GET /ws: it upgrades the connection and starts the
// client's read and write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &wsClient{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, clientBufSize),
		id:            uuid.New().String(),
		subscriptions: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", slog.String("client_id", c.id))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", slog.String("client_id", c.id))
}

// wsClient represents one WebSocket connection and its channel
// subscriptions.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subsMu        sync.RWMutex
	subscriptions map[string]bool
}

func (c *wsClient) subscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

// readPump consumes subscribe/unsubscribe messages until the
// connection closes.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.drop(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		c.subsMu.Lock()
		switch req.Action {
		case "subscribe":
			c.subscriptions[req.Channel] = true
		case "unsubscribe":
			delete(c.subscriptions, req.Channel)
		}
		c.subsMu.Unlock()
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
