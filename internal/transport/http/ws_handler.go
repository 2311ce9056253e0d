package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// WSHandler upgrades connections and registers them with the event hub.
// Clients identify themselves by userId and may join per-duel rooms to
// receive duel-scoped events.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type duelRoomPayload struct {
	DuelID string `json:"duelId"`
}

// ServeWS wires a websocket connection into the hub. The connection stays
// open until the client goes away; events queued for the user are pushed by
// a dedicated writer so reads and writes never share the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{userID: userID, conn: conn, send: make(chan outboundMessage, 16)}
	h.hub.register(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.enqueue(outboundMessage{Type: "connected", Payload: map[string]string{"userId": userID}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "joinDuel":
			var payload duelRoomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.DuelID == "" {
				c.enqueue(outboundMessage{Type: "error", Payload: map[string]string{"message": "invalid joinDuel payload"}})
				continue
			}
			h.hub.joinDuel(c, payload.DuelID)
		case "leaveDuel":
			var payload duelRoomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.DuelID == "" {
				c.enqueue(outboundMessage{Type: "error", Payload: map[string]string{"message": "invalid leaveDuel payload"}})
				continue
			}
			h.hub.leaveDuel(c, payload.DuelID)
		default:
			c.enqueue(outboundMessage{Type: "error", Payload: map[string]string{"message": "unsupported message type"}})
		}
	}

	// Unregister before closing send: once the client leaves the hub no
	// emitter can enqueue into the closed channel.
	h.hub.unregister(c)
	close(c.send)
	<-writerDone
}
