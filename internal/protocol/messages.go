// Package protocol defines the WebSocket message protocol between viewers and
// the gateway.
package protocol

import "github.com/xiaot623/hookwatch/internal/domain"

// Message types from viewer to gateway
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Message types from gateway to viewer
const (
	TypeSnapshot     = "snapshot"
	TypeEvent        = "event"
	TypeStateUpdate  = "state_update"
	TypeTaskUpdate   = "task_update"
	TypeHeartbeat    = "heartbeat"
	TypeRuntimeError = "runtime_error"
	TypePong         = "pong"
	TypeError        = "error"
	TypeUnsubscribed = "unsubscribed"
)

// ClientMessage is any message sent by a viewer.
type ClientMessage struct {
	Type              string `json:"type"`
	WorkspaceID       string `json:"workspace_id,omitempty"`
	TerminalSessionID string `json:"terminal_session_id,omitempty"`
	RunID             string `json:"run_id,omitempty"`
}

// Scope returns the scope the message refers to, with missing fields as
// wildcards.
func (m *ClientMessage) Scope() domain.ScopeKey {
	return domain.NewScopeKey(m.WorkspaceID, m.TerminalSessionID, m.RunID)
}

// ServerMessage is any message sent by the gateway.
type ServerMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Scope   string      `json:"scope,omitempty"`
	Message string      `json:"message,omitempty"`
	Ts      int64       `json:"ts"`
}

// NewMessage builds a data-carrying server message.
func NewMessage(msgType string, data interface{}, ts int64) ServerMessage {
	return ServerMessage{Type: msgType, Data: data, Ts: ts}
}
