package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/hookwatch/config"
	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/hub"
	"github.com/xiaot623/hookwatch/internal/protocol"
)

type fakeSnapshots struct {
	mu    sync.Mutex
	calls [][]domain.ScopeKey
}

func (f *fakeSnapshots) Snapshot(_ context.Context, scopes []domain.ScopeKey) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scopes)
	return &domain.Snapshot{Agents: []domain.AgentState{{AgentID: "ws1/leader"}}}, nil
}

func (f *fakeSnapshots) lastScopes() []domain.ScopeKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type received struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Scope   string          `json:"scope"`
	Message string          `json:"message"`
}

func setup(t *testing.T) (*hub.Hub, *fakeSnapshots, *websocket.Conn) {
	t.Helper()
	h := hub.NewHub(16)
	snaps := &fakeSnapshots{}
	srv := NewServer(config.Default(), h, snaps)

	e := echo.New()
	e.GET("/ws", srv.HandleWebSocket)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return h, snaps, conn
}

func readMsg(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSnapshotOnConnect(t *testing.T) {
	_, _, conn := setup(t)

	msg := readMsg(t, conn)
	assert.Equal(t, protocol.TypeSnapshot, msg.Type)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, "ws1/leader", snap.Agents[0].AgentID)
}

func TestPingAndMalformedMessages(t *testing.T) {
	_, _, conn := setup(t)
	readMsg(t, conn) // snapshot

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMsg(t, conn)
	assert.Equal(t, protocol.TypeError, msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg = readMsg(t, conn)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Contains(t, msg.Message, "dance")

	// connection survives errors
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, protocol.TypePong, readMsg(t, conn).Type)
}

func TestSubscribeFiltersBroadcasts(t *testing.T) {
	h, snaps, conn := setup(t)
	readMsg(t, conn) // snapshot

	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{
		Type: protocol.TypeSubscribe, WorkspaceID: "ws1", TerminalSessionID: "t1", RunID: "r1",
	}))
	msg := readMsg(t, conn)
	assert.Equal(t, protocol.TypeSnapshot, msg.Type)
	assert.Equal(t, []domain.ScopeKey{{WorkspaceID: "ws1", TerminalSessionID: "t1", RunID: "r1"}}, snaps.lastScopes())

	other := domain.ScopeKey{WorkspaceID: "ws2", TerminalSessionID: "t2", RunID: "r2"}
	mine := domain.ScopeKey{WorkspaceID: "ws1", TerminalSessionID: "t1", RunID: "r1"}
	h.Broadcast(protocol.ServerMessage{Type: protocol.TypeStateUpdate, Message: "other"}, &other)
	h.Broadcast(protocol.ServerMessage{Type: protocol.TypeStateUpdate, Message: "mine"}, &mine)

	msg = readMsg(t, conn)
	assert.Equal(t, "mine", msg.Message)

	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{
		Type: protocol.TypeUnsubscribe, WorkspaceID: "ws1", TerminalSessionID: "t1", RunID: "r1",
	}))
	msg = readMsg(t, conn)
	assert.Equal(t, protocol.TypeUnsubscribed, msg.Type)
	assert.Equal(t, "ws1:t1:r1", msg.Scope)
}
