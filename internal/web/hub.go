package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atmx/userpanel/internal/metrics"
	"github.com/atmx/userpanel/internal/view"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Message is a JSON message sent to WebSocket clients.
type Message struct {
	Type  string            `json:"type"` // "snapshot" or "paint"
	Slot  view.Slot         `json:"slot,omitempty"`
	Data  any               `json:"data,omitempty"`
	Slots map[view.Slot]any `json:"slots,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
}

// Hub pushes painted view-models to every connected browser. It implements
// view.Display.
type Hub struct {
	snapshot   func() map[view.Slot]any
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a hub. snapshot supplies the slots sent to a client when
// it connects; nil sends none.
func NewHub(snapshot func() map[view.Slot]any) *Hub {
	if snapshot == nil {
		snapshot = func() map[view.Slot]any { return nil }
	}
	return &Hub{
		snapshot:   snapshot,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop until ctx is done. Must be called in a
// goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			return

		case c := <-h.register:
			if err := h.greet(c); err != nil {
				slog.Warn("ws snapshot failed", "client", c.id, "err", err)
				c.conn.Close()
				continue
			}
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			slog.Info("ws client connected", "client", c.id, "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			slog.Info("ws client disconnected", "client", c.id, "total", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					slog.Debug("ws write failed, dropping client", "client", c.id, "err", err)
					c.conn.Close()
					delete(h.clients, c)
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
		}
	}
}

// greet sends c every painted slot. It runs on the hub loop so no paint
// broadcast can fall between the snapshot and registration.
func (h *Hub) greet(c *client) error {
	slots := h.snapshot()
	if len(slots) == 0 {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(Message{Type: "snapshot", Slots: slots})
}

// Show broadcasts a painted slot.
func (h *Hub) Show(slot view.Slot, v any) {
	data, err := json.Marshal(Message{Type: "paint", Slot: slot, Data: v})
	if err != nil {
		slog.Error("ws marshal failed", "slot", slot, "err", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking the painter.
		slog.Warn("ws broadcast buffer full, paint dropped", "slot", slot)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws. The new
// client first receives every painted slot, then live paints.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	c := &client{id: uuid.New().String(), conn: conn}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
		}()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[c]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}()
}
