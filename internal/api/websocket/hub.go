// Package websocket pushes solve progress to optimizer pages so the lineup
// table fills in live while the solver streams.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup-client/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are filtered by the CORS middleware upstream
	},
}

// Client is one page's WebSocket connection
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
}

// Hub maintains active connections grouped by session ID
type Hub struct {
	clients        map[*Client]bool
	sessionClients map[string][]*Client
	register       chan *Client
	unregister     chan *Client
	logger         *logrus.Logger
	mutex          sync.RWMutex
}

// NewHub creates a progress hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		sessionClients: make(map[string][]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		logger:         logger,
	}
}

// Run handles client registration and teardown
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.sessionClients[client.SessionID] = append(h.sessionClients[client.SessionID], client)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"session":       client.SessionID,
				"total_clients": h.count(),
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			h.dropLocked(client)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"session":       client.SessionID,
				"total_clients": h.count(),
			}).Info("WebSocket client disconnected")
		}
	}
}

func (h *Hub) count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// dropLocked fully removes a client, including its sessionClients entry, so
// later publishes never see a closed Send channel. Safe to call twice for
// the same client. Caller holds the write lock.
func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	clients := h.sessionClients[client.SessionID]
	for i, c := range clients {
		if c == client {
			h.sessionClients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.sessionClients[client.SessionID]) == 0 {
		delete(h.sessionClients, client.SessionID)
	}
}

// Publish sends a progress event to every connection watching a session.
// Implements session.Publisher. A slow consumer is dropped, never blocked on.
func (h *Hub) Publish(sessionID string, event session.ProgressEvent) {
	h.mutex.RLock()
	watching := len(h.sessionClients[sessionID])
	h.mutex.RUnlock()

	if watching == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal progress event")
		return
	}

	h.mutex.Lock()
	clients := append([]*Client(nil), h.sessionClients[sessionID]...)
	for _, client := range clients {
		if _, ok := h.clients[client]; !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.dropLocked(client)
		}
	}
	h.mutex.Unlock()
}

// HandleWebSocket upgrades a page's progress subscription
func (h *Hub) HandleWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Hub:       h,
	}

	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound frames and detects disconnects
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			break
		}
	}
}

// writePump drains the send channel onto the connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
