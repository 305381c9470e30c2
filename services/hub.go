package services

import (
	"encoding/json"
	"sync"
	"time"

	"barangay-portal/cache"
	"barangay-portal/models"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
)

// Hub manages live-feed WebSocket connections. Every snapshot publish is
// broadcast wholesale to all connected clients; clients never receive
// partial updates.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// Client represents a WebSocket client connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	viewerID string
}

// NewHub creates a new live-feed hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Start runs the hub loop; call it in a goroutine.
func (h *Hub) Start() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Infof("Feed client registered for viewer %s", client.viewerID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			log.Infof("Feed client unregistered for viewer %s", client.viewerID)

		case message := <-h.broadcast:
			// Collect slow clients under the read lock, drop them under the
			// write lock; ConnectedClients reads the map concurrently.
			var slow []*Client
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			h.mutex.RUnlock()

			if len(slow) > 0 {
				h.mutex.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mutex.Unlock()
			}
		}
	}
}

// BroadcastSnapshot pushes a snapshot to every connected client.
func (h *Hub) BroadcastSnapshot(snap *cache.Snapshot) {
	msg := models.FeedMessage{
		Type:      "snapshot",
		Reports:   snap.Reports,
		UpdatedAt: snap.UpdatedAt,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to serialize feed message: %v", err)
		return
	}
	h.broadcast <- data
}

// RegisterClient registers a new WebSocket client and starts its pumps.
func (h *Hub) RegisterClient(conn *websocket.Conn, viewerID string) {
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		viewerID: viewerID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// ConnectedClients returns the number of connected clients.
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump discards client messages and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("Feed read error for viewer %s: %v", c.viewerID, err)
			}
			break
		}
	}
}

// writePump pumps broadcast messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
