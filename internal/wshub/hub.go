// Package wshub implements the live event tail WebSocket endpoint
// (`GET /events/stream`, component M of SPEC_FULL.md §6): every message passed
// to Hub.BroadcastEvent is sent to connected clients. Events appended to
// persistence are not broadcast on their own; cmd/watchkeeper broadcasts only
// the POLICY_DECISION events its router event logger records.
// Adapted from the teacher's internal/websocket hub pattern (register/
// unregister channels draining into a single broadcaster goroutine).
package wshub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Message is the envelope written to every connected client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out broadcast messages to every connected client.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]struct{}
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run drives the hub's event loop; call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent marshals payload under the given message type and pushes it
// to every connected client. Never blocks: a slow or dead client is dropped
// rather than stalling the broadcaster.
func (h *Hub) BroadcastEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: eventType, Data: payload})
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("wshub: failed to marshal broadcast message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn().Str("event_type", eventType).Msg("wshub: broadcast channel full, dropping message")
	}
}

// HandleWebSocket upgrades the request and pumps messages to the new client
// until it disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("wshub: upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
}

// readPump only exists to detect client disconnects and unblock writePump;
// this hub is broadcast-only and never expects inbound client messages.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
