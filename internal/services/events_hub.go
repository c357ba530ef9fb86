package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types pushed to live connections
const (
	EventMemoryCreated   = "memory_created"
	EventMemoryUpdated   = "memory_updated"
	EventMemoryDeleted   = "memory_deleted"
	EventWishlistCreated = "wishlist_created"
	EventWishlistUpdated = "wishlist_updated"
	EventWishlistDeleted = "wishlist_deleted"
	EventPong            = "pong"
	EventError           = "error"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer is how many events may wait for a slow connection before it is dropped
	sendBuffer = 32
)

// Event represents a WebSocket message
type Event struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// wsClient owns the write side of one connection. Only writeLoop writes
// data frames; send is closed by the hub when the connection is removed.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	go c.writeLoop()
	return c
}

func (c *wsClient) writeLoop() {
	failed := false
	for data := range c.send {
		if failed {
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Msg("Failed to deliver event")
			// the reader sees the closed connection and unregisters it
			c.conn.Close()
			failed = true
		}
	}
}

// enqueue never blocks. The caller holds the hub lock.
func (c *wsClient) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// EventsHub manages WebSocket connections. A user may hold several
// connections at once, one per open map.
type EventsHub struct {
	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]*wsClient
}

// NewEventsHub creates a new WebSocket hub
func NewEventsHub() *EventsHub {
	return &EventsHub{
		connections: make(map[string]map[*websocket.Conn]*wsClient),
	}
}

// Register registers a new WebSocket connection for a user
func (h *EventsHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[userID]
	if !ok {
		conns = make(map[*websocket.Conn]*wsClient)
		h.connections[userID] = conns
	}
	conns[conn] = newWSClient(conn)

	log.Info().Str("user_id", userID).Int("connections", len(conns)).Msg("WebSocket connection registered")
}

// Unregister closes and removes one connection of a user
func (h *EventsHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[userID]
	if !ok {
		return
	}
	client, ok := conns[conn]
	if !ok {
		return
	}
	close(client.send)
	conn.Close()
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.connections, userID)
	}
	log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
}

// CloseAll closes every open connection
func (h *EventsHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.connections {
		for conn, client := range conns {
			close(client.send)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			conn.Close()
		}
		delete(h.connections, userID)
	}
}

// ConnectionCount returns how many connections a user has open
func (h *EventsHub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// SendTo queues an event for a single connection of a user
func (h *EventsHub) SendTo(userID string, conn *websocket.Conn, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	client, ok := h.connections[userID][conn]
	queued := ok && client.enqueue(data)
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("connection of user %s is not registered", userID)
	}
	if !queued {
		h.Unregister(userID, conn)
		return fmt.Errorf("send queue of user %s is full", userID)
	}
	return nil
}

// Publish queues an event for every connection of a user and returns
// without waiting for delivery. Connections whose queue is full are dropped.
func (h *EventsHub) Publish(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal event")
		return
	}

	var stalled []*websocket.Conn
	h.mu.RLock()
	for conn, c := range h.connections[userID] {
		if !c.enqueue(data) {
			stalled = append(stalled, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range stalled {
		log.Warn().Str("user_id", userID).Str("type", event.Type).Msg("Dropping WebSocket connection with full send queue")
		h.Unregister(userID, conn)
	}
}
