// Package ws provides the WebSocket endpoint for live viewers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hookwatch/config"
	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/hub"
	"github.com/xiaot623/hookwatch/internal/protocol"
)

// SnapshotProvider builds the snapshot pushed to a viewer. An empty scope
// list means all active scopes.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, scopes []domain.ScopeKey) (*domain.Snapshot, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg       *config.Config
	hub       *hub.Hub
	snapshots SnapshotProvider
	upgrader  websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, snapshots SnapshotProvider) *Server {
	return &Server{
		cfg:       cfg,
		hub:       h,
		snapshots: snapshots,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Access control is handled in front of the gateway.
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("Failed to upgrade WebSocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	// broadcasts racing the first snapshot are parked until it is queued
	s.hub.Hold(conn)
	s.hub.Register(conn)
	slog.Info("Viewer connected", "connection_id", conn.ID, "remote", c.RealIP())

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	s.pushSnapshot(conn)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
		slog.Info("Viewer disconnected", "connection_id", conn.ID)
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket error", "connection_id", conn.ID, "error", err)
			}
			break
		}
		// any traffic counts as liveness
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("Failed to write message", "connection_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages. Malformed input gets an error
// reply and the connection stays open.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "invalid JSON message")
		return
	}

	switch msg.Type {
	case protocol.TypeSubscribe:
		scope := msg.Scope()
		s.hub.Subscribe(conn, scope)
		slog.Debug("Viewer subscribed", "connection_id", conn.ID, "scope", scope.String())
		s.pushSnapshot(conn)
	case protocol.TypeUnsubscribe:
		scope := msg.Scope()
		s.hub.Unsubscribe(conn, scope)
		s.send(conn, protocol.ServerMessage{Type: protocol.TypeUnsubscribed, Scope: scope.String(), Ts: time.Now().UnixMilli()})
	case protocol.TypePing:
		s.send(conn, protocol.ServerMessage{Type: protocol.TypePong, Ts: time.Now().UnixMilli()})
	case "":
		s.sendError(conn, "message type is required")
	default:
		s.sendError(conn, "unknown message type: "+msg.Type)
	}
}

// pushSnapshot sends a snapshot filtered to the viewer's subscriptions.
// Broadcasts that arrive while it is built are delivered after it.
func (s *Server) pushSnapshot(conn *hub.Connection) {
	s.hub.Hold(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := protocol.NewMessage(protocol.TypeSnapshot, nil, 0)
	snap, err := s.snapshots.Snapshot(ctx, s.hub.Subscriptions(conn))
	if err != nil {
		slog.Error("Failed to build snapshot", "connection_id", conn.ID, "error", err)
		msg = protocol.ServerMessage{Type: protocol.TypeError, Message: "snapshot unavailable"}
	} else {
		msg.Data = snap
	}
	msg.Ts = time.Now().UnixMilli()

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode snapshot", "connection_id", conn.ID, "error", err)
		data = nil
	}
	if err := s.hub.Release(conn, data); err != nil {
		slog.Warn("Failed to queue snapshot", "connection_id", conn.ID, "error", err)
		s.hub.Unregister(conn)
	}
}

func (s *Server) send(conn *hub.Connection, msg protocol.ServerMessage) {
	if err := s.hub.SendJSONToConnection(conn, msg); err != nil {
		slog.Warn("Failed to queue message", "connection_id", conn.ID, "type", msg.Type, "error", err)
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, message string) {
	s.send(conn, protocol.ServerMessage{Type: protocol.TypeError, Message: message, Ts: time.Now().UnixMilli()})
}
