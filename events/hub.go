package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	// serializes writes, a websocket conn allows one concurrent writer
	mu sync.Mutex
}

// Hub keeps the connected responder dashboards and broadcasts events to them
type Hub struct {
	clients map[string]*client
	mutex   sync.Mutex
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Count is the number of connected clients
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and keeps the connection registered under id
// until the peer goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, id string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade error", "error", err)
		return
	}

	h.mutex.Lock()
	if old, ok := h.clients[id]; ok {
		old.conn.Close()
	}
	c := &client{conn: conn}
	h.clients[id] = c
	h.mutex.Unlock()
	zap.S().Infow("responder connected to event stream", "id", id)

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	h.remove(id, c)
	zap.S().Infow("responder disconnected from event stream", "id", id)
}

func (h *Hub) remove(id string, c *client) {
	h.mutex.Lock()
	if cur, ok := h.clients[id]; ok && cur == c {
		delete(h.clients, id)
	}
	h.mutex.Unlock()
	c.conn.Close()
}

// Publish implements Publisher by broadcasting to every connected client.
// Clients that fail a write are dropped.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mutex.Lock()
	targets := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mutex.Unlock()

	for id, c := range targets {
		c.mu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteJSON(map[string]interface{}{
			"event": e.Type,
			"data":  e,
		})
		c.mu.Unlock()
		if err != nil {
			zap.S().Warnw("error broadcasting report event", "id", id, "error", err)
			h.remove(id, c)
		}
	}
	return nil
}
