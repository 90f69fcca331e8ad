// Package hub provides connection management for WebSocket viewers.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// DefaultSendBuffer is the per-connection outbound queue length.
const DefaultSendBuffer = 256

// Connection represents a single WebSocket viewer.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	// subscriptions keyed by their string form
	subs   map[string]domain.ScopeKey
	closed bool
	// messages parked while a snapshot is being built
	held    [][]byte
	holding bool
	mu      sync.Mutex
}

// Hub manages all WebSocket connections and their scope subscriptions.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection
	sendBuffer  int

	mu sync.RWMutex
}

// NewHub creates a new Hub. sendBuffer <= 0 selects DefaultSendBuffer.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		connections: make(map[string]*Connection),
		sendBuffer:  sendBuffer,
	}
}

// NewConnection creates a connection. It is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, h.sendBuffer),
		subs: make(map[string]domain.ScopeKey),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
}

// Unregister removes a connection and closes its send channel. Calling it
// more than once is safe.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	delete(h.connections, conn.ID)
	conn.mu.Lock()
	if !conn.closed {
		conn.closed = true
		conn.held = nil
		close(conn.Send)
	}
	conn.mu.Unlock()
	h.mu.Unlock()
}

// Hold parks messages for conn instead of queueing them, until Release.
func (h *Hub) Hold(conn *Connection) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.holding = true
}

// Release queues first, then every message parked since Hold, and resumes
// normal delivery. Parked messages may already be reflected in first; they
// are delivered in broadcast order. A full buffer returns ErrBufferFull and
// the caller should unregister the connection.
func (h *Hub) Release(conn *Connection, first []byte) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return ErrConnectionClosed
	}
	pending := conn.held
	conn.held = nil
	conn.holding = false
	if first != nil {
		pending = append([][]byte{first}, pending...)
	}
	for _, data := range pending {
		select {
		case conn.Send <- data:
		default:
			return ErrBufferFull
		}
	}
	return nil
}

// Subscribe adds a scope to the connection's subscriptions.
func (h *Hub) Subscribe(conn *Connection, scope domain.ScopeKey) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.subs[scope.String()] = scope
}

// Unsubscribe removes a scope from the connection's subscriptions.
func (h *Hub) Unsubscribe(conn *Connection, scope domain.ScopeKey) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	delete(conn.subs, scope.String())
}

// Subscriptions returns a copy of the connection's subscriptions. An empty
// result means the connection receives every broadcast.
func (h *Hub) Subscriptions(conn *Connection) []domain.ScopeKey {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	out := make([]domain.ScopeKey, 0, len(conn.subs))
	for _, s := range conn.subs {
		out = append(out, s)
	}
	return out
}

// wants reports whether a message tagged with scope should reach conn.
func (c *Connection) wants(scope *domain.ScopeKey) bool {
	if scope == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return true
	}
	for _, sub := range c.subs {
		if sub.Matches(*scope) {
			return true
		}
	}
	return false
}

// Broadcast marshals v once and queues it for every matching viewer. A nil
// scope reaches all viewers. Viewers whose buffer is full are evicted.
// It returns the number of viewers the message was queued for.
func (h *Hub) Broadcast(v interface{}, scope *domain.ScopeKey) int {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode broadcast", "error", err)
		return 0
	}

	var slow []*Connection
	sent := 0

	h.mu.RLock()
	for _, conn := range h.connections {
		if !conn.wants(scope) {
			continue
		}
		if err := h.SendToConnection(conn, data); err != nil {
			slow = append(slow, conn)
			continue
		}
		sent++
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		slog.Warn("Viewer buffer full, evicting", "connection_id", conn.ID)
		h.Unregister(conn)
	}
	return sent
}

// SendToConnection queues data for a connection without blocking. While the
// connection is held the data is parked instead.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return ErrConnectionClosed
	}
	if conn.holding {
		if len(conn.held)+len(conn.Send) >= cap(conn.Send) {
			return ErrBufferFull
		}
		conn.held = append(conn.held, data)
		return nil
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// WriteMessage writes a frame to the socket. Only the write pump calls it.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}

// ErrConnectionClosed is returned when sending to an unregistered connection.
var ErrConnectionClosed = &ConnectionClosedError{}

// ConnectionClosedError represents a send to a closed connection.
type ConnectionClosedError struct{}

func (e *ConnectionClosedError) Error() string {
	return "connection closed"
}
