package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one websocket connection. Keyed by a connection id rather than
// the user id so one user can hold several tabs open at once.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	hub      *Hub
	pipeline *Pipeline
}

// NewClient wraps an upgraded connection for the pipeline.
func NewClient(id, userID string, conn *websocket.Conn, pipeline *Pipeline) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		hub:      pipeline.Hub(),
		pipeline: pipeline,
	}
}

// Hub tracks connections and their room subscriptions.
type Hub struct {
	clientsMux sync.RWMutex
	clients    map[string]*Client // connection id -> client

	roomsMux sync.RWMutex
	rooms    map[string]map[string]bool // room id -> set of connection ids
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
	}
}

// RoomID derives the room name for a workspace's chat.
func RoomID(workspaceID string) string {
	return "workspace:" + workspaceID
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.clientsMux.Lock()
	h.clients[c.ID] = c
	h.clientsMux.Unlock()
}

// Unregister removes a connection and all its room subscriptions.
func (h *Hub) Unregister(c *Client) {
	h.clientsMux.Lock()
	delete(h.clients, c.ID)
	h.clientsMux.Unlock()

	h.roomsMux.Lock()
	for roomID, members := range h.rooms {
		if members[c.ID] {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.roomsMux.Unlock()
}

// JoinRoom subscribes a connection to a room. Idempotent.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.roomsMux.Lock()
	defer h.roomsMux.Unlock()
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[string]bool)
		h.rooms[roomID] = set
	}
	set[connID] = true
}

// LeaveRoom unsubscribes a connection from a room. Idempotent.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.roomsMux.Lock()
	defer h.roomsMux.Unlock()
	if set, ok := h.rooms[roomID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// InRoom reports whether a connection is subscribed to a room.
func (h *Hub) InRoom(connID, roomID string) bool {
	h.roomsMux.RLock()
	defer h.roomsMux.RUnlock()
	return h.rooms[roomID][connID]
}

// BroadcastRoom fans a payload out to every connection in the room,
// including the sender's own connection. Slow consumers are skipped rather
// than blocking the room.
func (h *Hub) BroadcastRoom(roomID string, payload []byte) {
	h.roomsMux.RLock()
	members := make([]string, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		members = append(members, connID)
	}
	h.roomsMux.RUnlock()

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	for _, connID := range members {
		client, ok := h.clients[connID]
		if !ok {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			fmt.Printf("⚠️ Dropping message for slow connection %s\n", connID)
		}
	}
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.roomsMux.RLock()
	defer h.roomsMux.RUnlock()
	return len(h.rooms[roomID])
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// ReadPump pumps inbound frames from the websocket to the pipeline.
// Runs in its own goroutine per connection; exits on read error.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("⚠️ Unexpected close for user %s: %v\n", c.UserID, err)
			}
			break
		}
		c.pipeline.HandleEvent(c, message)
	}
}

// WritePump pumps outbound payloads from the Send channel to the websocket
// and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
