package http

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan outboundMessage
}

// Hub routes duel lifecycle events to connected websocket clients. Clients
// are keyed by user ID and may additionally join duel-scoped rooms. The hub
// implements app.Notifier; delivery is fire-and-forget.
type Hub struct {
	mu      sync.RWMutex
	byUser  map[string]map[*client]struct{}
	byDuel  map[string]map[*client]struct{}
	clients map[*client]map[string]struct{} // duel rooms per client, for cleanup
}

func NewHub() *Hub {
	return &Hub{
		byUser:  make(map[string]map[*client]struct{}),
		byDuel:  make(map[string]map[*client]struct{}),
		clients: make(map[*client]map[string]struct{}),
	}
}

func (h *Hub) EmitToUser(userID, event string, payload any) {
	msg := outboundMessage{Type: event, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.enqueue(msg)
	}
}

func (h *Hub) EmitToDuel(duelID, event string, payload any) {
	msg := outboundMessage{Type: event, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byDuel[duelID] {
		c.enqueue(msg)
	}
}

func (h *Hub) Broadcast(event string, payload any) {
	msg := outboundMessage{Type: event, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(msg)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[c.userID] == nil {
		h.byUser[c.userID] = make(map[*client]struct{})
	}
	h.byUser[c.userID][c] = struct{}{}
	h.clients[c] = make(map[string]struct{})
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.byUser[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	for duelID := range h.clients[c] {
		h.dropFromDuelLocked(c, duelID)
	}
	delete(h.clients, c)
}

func (h *Hub) joinDuel(c *client, duelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.clients[c]
	if !ok {
		return
	}
	rooms[duelID] = struct{}{}
	if h.byDuel[duelID] == nil {
		h.byDuel[duelID] = make(map[*client]struct{})
	}
	h.byDuel[duelID][c] = struct{}{}
}

func (h *Hub) leaveDuel(c *client, duelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.clients[c]; ok {
		delete(rooms, duelID)
	}
	h.dropFromDuelLocked(c, duelID)
}

func (h *Hub) dropFromDuelLocked(c *client, duelID string) {
	if set, ok := h.byDuel[duelID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byDuel, duelID)
		}
	}
}

// enqueue never blocks the hub: when a client's buffer is full, the oldest
// queued message is dropped so slow readers only lose stale updates.
func (c *client) enqueue(msg outboundMessage) {
	select {
	case c.send <- msg:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("ws write to %s: %v", c.userID, err)
			return
		}
	}
}
