package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024 * 1024 // blob captures run to a few MB

	// Outbound queue length per client.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and broadcasts every message a
// client sends to all connected clients, the sender included.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Inbound messages from the clients.
	broadcast chan WriteData

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(collector *metrics.Collector, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan WriteData, sendBuffer),
		done:       make(chan struct{}),
		metrics:    collector,
		logger:     logger.With(zap.String("component", "hub")),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing
// every client connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.SetHubClients(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			if previous, ok := h.clients[client.id]; ok {
				// Same peer reconnected; retire the stale connection.
				close(previous.send)
			}
			h.clients[client.id] = client
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetHubClients(n)
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("role", client.role))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case message := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range slow {
				h.logger.Warn("Dropping slow client", zap.String("clientID", client.id))
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetHubClients(n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id   string
	role string

	logger *zap.Logger
}

// HandleWebSocket upgrades the request and attaches the connection to the
// hub. An empty id gets a generated one.
func HandleWebSocket(hub *Hub, c echo.Context, id, role string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if id == "" {
		id = uuid.NewString()
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, sendBuffer),
		id:     id,
		role:   role,
		logger: hub.logger.With(zap.String("clientID", id)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if len(message) == 0 && messageType == websocket.TextMessage {
			continue
		}
		if _, ok := fromFrame(messageType, message); !ok {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}

		select {
		case c.hub.broadcast <- WriteData{Type: messageType, Payload: message}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
