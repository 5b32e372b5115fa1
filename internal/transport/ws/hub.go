// Package ws bridges browser clients to the service over websocket: it
// fans out conversation updates and carries live voice audio both ways.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/metrics"
)

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

const sendBuffer = 256

// Connection represents a single WebSocket connection.
type Connection struct {
	ID            string
	PersonalityID string
	Conn          *websocket.Conn
	Send          chan []byte
	Started       time.Time

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	liveMu sync.Mutex
	device *device
}

// Hub manages all WebSocket connections and their subscriptions.
type Hub struct {
	connections map[string]*Connection

	// subscribers maps personality id to subscribed connection ids
	subscribers map[string]map[string]bool

	unregister chan *Connection
	broadcast  chan *topicMessage
	stopped    chan struct{}

	metrics *metrics.Metrics
	mu      sync.RWMutex
}

type topicMessage struct {
	// personalityID selects subscribers; empty means every connection
	personalityID string
	data          []byte
}

// NewHub creates a new Hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		subscribers: make(map[string]map[string]bool),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *topicMessage, sendBuffer),
		stopped:     make(chan struct{}),
		metrics:     m,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.unsubscribeLocked(conn)
				close(conn.Send)
				h.metrics.WSConnected(-1)
			}
			h.mu.Unlock()
			logrus.WithField("conn_id", conn.ID).Debug("Connection unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, conn := range h.targetsLocked(msg.personalityID) {
				select {
				case conn.Send <- msg.data:
				default:
					logrus.WithField("conn_id", conn.ID).Warn("Connection buffer full, closing")
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) targetsLocked(personalityID string) []*Connection {
	var out []*Connection
	if personalityID == "" {
		for _, conn := range h.connections {
			out = append(out, conn)
		}
		return out
	}
	for connID := range h.subscribers[personalityID] {
		if conn, ok := h.connections[connID]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// NewConnection creates a connection. Register it before use.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:      "conn_" + uuid.New().String()[:8],
		Conn:    ws,
		Send:    make(chan []byte, sendBuffer),
		Started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a connection to the hub. It is visible to
// SendJSONToConnection as soon as Register returns.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	h.metrics.WSConnected(1)
	logrus.WithField("conn_id", conn.ID).Debug("Connection registered")
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	conn.cancel()
	select {
	case h.unregister <- conn:
	case <-h.stopped:
	}
}

// Subscribe binds a connection to the conversation of personalityID,
// replacing its previous subscription.
func (h *Hub) Subscribe(conn *Connection, personalityID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unsubscribeLocked(conn)
	conn.PersonalityID = personalityID
	if h.subscribers[personalityID] == nil {
		h.subscribers[personalityID] = make(map[string]bool)
	}
	h.subscribers[personalityID][conn.ID] = true
}

func (h *Hub) unsubscribeLocked(conn *Connection) {
	if conn.PersonalityID == "" || h.subscribers[conn.PersonalityID] == nil {
		return
	}
	delete(h.subscribers[conn.PersonalityID], conn.ID)
	if len(h.subscribers[conn.PersonalityID]) == 0 {
		delete(h.subscribers, conn.PersonalityID)
	}
}

// BroadcastJSON sends v to the subscribers of personalityID, or to every
// connection when personalityID is empty.
func (h *Hub) BroadcastJSON(personalityID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &topicMessage{personalityID: personalityID, data: data}:
	case <-h.stopped:
	}
	return nil
}

// SendJSONToConnection sends a JSON message to a specific connection.
// Sending to an unregistered connection is a no-op.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return nil
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SubscriberCount returns the number of connections following personalityID.
func (h *Hub) SubscriberCount(personalityID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[personalityID])
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// clock returns seconds since the connection started.
func (c *Connection) clock() float64 {
	return time.Since(c.Started).Seconds()
}
