package hub

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/hookwatch/internal/domain"
)

func newRegistered(h *Hub) *Connection {
	conn := h.NewConnection(nil)
	h.Register(conn)
	return conn
}

func drain(conn *Connection) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case data, ok := <-conn.Send:
			if !ok {
				return out
			}
			var m map[string]interface{}
			_ = json.Unmarshal(data, &m)
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestBroadcastScopedAndFirehose(t *testing.T) {
	h := NewHub(8)
	scoped := newRegistered(h)
	firehose := newRegistered(h)
	wildcard := newRegistered(h)

	h.Subscribe(scoped, domain.ScopeKey{WorkspaceID: "ws1", TerminalSessionID: "t1", RunID: "r1"})
	h.Subscribe(wildcard, domain.AllScopes)

	other := domain.ScopeKey{WorkspaceID: "ws2", TerminalSessionID: "t2", RunID: "r2"}
	sent := h.Broadcast(map[string]string{"type": "state_update"}, &other)

	assert.Equal(t, 2, sent)
	assert.Empty(t, drain(scoped))
	assert.Len(t, drain(firehose), 1)
	assert.Len(t, drain(wildcard), 1)

	mine := domain.ScopeKey{WorkspaceID: "ws1", TerminalSessionID: "t1", RunID: "r1"}
	assert.Equal(t, 3, h.Broadcast(map[string]string{"type": "event"}, &mine))
	assert.Equal(t, 3, h.Broadcast(map[string]string{"type": "heartbeat"}, nil))
	assert.Len(t, drain(scoped), 2)
}

func TestPerFieldWildcardSubscription(t *testing.T) {
	h := NewHub(8)
	conn := newRegistered(h)
	h.Subscribe(conn, domain.NewScopeKey("ws1", "", ""))

	a := domain.ScopeKey{WorkspaceID: "ws1", TerminalSessionID: "t9", RunID: "r9"}
	b := domain.ScopeKey{WorkspaceID: "ws2", TerminalSessionID: "t9", RunID: "r9"}
	h.Broadcast("a", &a)
	h.Broadcast("b", &b)

	assert.Len(t, conn.Send, 1)
}

func TestUnsubscribeRestoresFirehose(t *testing.T) {
	h := NewHub(8)
	conn := newRegistered(h)
	scope := domain.ScopeKey{WorkspaceID: "ws1", TerminalSessionID: "t1", RunID: "r1"}
	h.Subscribe(conn, scope)
	require.Len(t, h.Subscriptions(conn), 1)

	h.Unsubscribe(conn, scope)
	assert.Empty(t, h.Subscriptions(conn))

	other := domain.ScopeKey{WorkspaceID: "x", TerminalSessionID: "y", RunID: "z"}
	assert.Equal(t, 1, h.Broadcast("msg", &other))
}

func TestSlowViewerEvicted(t *testing.T) {
	h := NewHub(1)
	slow := newRegistered(h)
	fast := newRegistered(h)

	assert.Equal(t, 2, h.Broadcast("one", nil))
	drain(fast)

	assert.Equal(t, 1, h.Broadcast("two", nil))
	assert.Equal(t, 1, h.GetConnectionCount())

	// evicted connection has its channel closed and refuses sends
	drain(slow)
	_, ok := <-slow.Send
	assert.False(t, ok)
	assert.ErrorIs(t, h.SendToConnection(slow, []byte("x")), ErrConnectionClosed)
}

func TestUnregisterIdempotent(t *testing.T) {
	h := NewHub(4)
	conn := newRegistered(h)
	h.Unregister(conn)
	h.Unregister(conn)
	assert.Equal(t, 0, h.GetConnectionCount())
}

func TestHoldParksBroadcastsUntilRelease(t *testing.T) {
	h := NewHub(8)
	conn := h.NewConnection(nil)
	h.Hold(conn)
	h.Register(conn)

	assert.Equal(t, 1, h.Broadcast(map[string]string{"type": "state_update"}, nil))
	assert.Empty(t, drain(conn))

	require.NoError(t, h.Release(conn, []byte(`{"type":"snapshot"}`)))
	h.Broadcast(map[string]string{"type": "event"}, nil)

	msgs := drain(conn)
	require.Len(t, msgs, 3)
	assert.Equal(t, "snapshot", msgs[0]["type"])
	assert.Equal(t, "state_update", msgs[1]["type"])
	assert.Equal(t, "event", msgs[2]["type"])
}

func TestHeldViewerEvictedWhenParkedQueueFull(t *testing.T) {
	h := NewHub(2)
	conn := h.NewConnection(nil)
	h.Hold(conn)
	h.Register(conn)

	h.Broadcast(map[string]string{"type": "a"}, nil)
	h.Broadcast(map[string]string{"type": "b"}, nil)
	assert.Equal(t, 0, h.Broadcast(map[string]string{"type": "c"}, nil))
	assert.Equal(t, 0, h.GetConnectionCount())
	assert.ErrorIs(t, h.Release(conn, nil), ErrConnectionClosed)
}

func TestRegisterAndUnregisterDoNotLog(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	h := NewHub(4)
	conn := newRegistered(h)
	h.Unregister(conn)

	assert.Empty(t, buf.String())
}
