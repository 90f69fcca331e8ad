package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/protocol"
	"github.com/xiaot623/hookwatch/internal/settings"
)

func TestTickAppliesIdleTimerPreferringResting(t *testing.T) {
	s := settings.Defaults()
	s.StaleAgentSeconds = 3600
	f := newFixture(t, s, nil)
	ctx := context.Background()

	f.ingest(t, map[string]interface{}{"hook_event_name": "agent_started", "agent_name": "alice"})
	f.clock.Advance(301 * time.Second)
	f.svc.tick(ctx)

	alice, err := f.svc.GetAgent(ctx, "ws1/alice")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusResting, alice.Status)
	assert.Equal(t, string(domain.AgentStatusResting), alice.Position)

	updates := f.bus.stateUpdates("ws1/alice")
	require.Len(t, updates, 2)
	timer := updates[1]
	assert.Equal(t, domain.AgentStatusIdle, timer.OldStatus)
	assert.Equal(t, domain.AgentStatusResting, timer.NewStatus)
	assert.Nil(t, timer.TriggeredByEventID)

	beats := f.bus.ofType(protocol.TypeHeartbeat)
	require.Len(t, beats, 1)
	data := beats[0].Data.(domain.HeartbeatData)
	assert.Equal(t, "ws1:t1:r1", data.Scope)
	assert.Equal(t, 1, data.AgentCount)

	// nothing further is due
	f.svc.tick(ctx)
	assert.Len(t, f.bus.stateUpdates("ws1/alice"), 2)
}

func TestTickBreakroomBeforeResting(t *testing.T) {
	f := newFixture(t, settings.Defaults(), nil)
	ctx := context.Background()

	f.ingest(t, map[string]interface{}{"hook_event_name": "agent_started", "agent_name": "alice"})
	f.clock.Advance(150 * time.Second)
	f.svc.tick(ctx)

	alice, _ := f.svc.GetAgent(ctx, "ws1/alice")
	assert.Equal(t, domain.AgentStatusBreakroom, alice.Status)
}

func TestTickHandoffGrace(t *testing.T) {
	f := newFixture(t, settings.Defaults(), nil)
	ctx := context.Background()

	f.ingest(t, map[string]interface{}{"hook_event_name": "manager_assign", "agent_name": "alice"})
	alice, _ := f.svc.GetAgent(ctx, "ws1/alice")
	require.Equal(t, domain.AgentStatusHandoff, alice.Status)

	f.clock.Advance(5 * time.Second)
	f.svc.tick(ctx)
	alice, _ = f.svc.GetAgent(ctx, "ws1/alice")
	assert.Equal(t, domain.AgentStatusHandoff, alice.Status)

	f.clock.Advance(10 * time.Second)
	f.svc.tick(ctx)
	alice, _ = f.svc.GetAgent(ctx, "ws1/alice")
	assert.Equal(t, domain.AgentStatusReturning, alice.Status)
}

func TestTickMarksStaleSessions(t *testing.T) {
	f := newFixture(t, settings.Defaults(), nil)
	ctx := context.Background()

	f.ingest(t, map[string]interface{}{"hook_event_name": "agent_started"})
	f.clock.Advance(121 * time.Second)
	f.svc.tick(ctx)

	sessions, err := f.svc.ListSessions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Empty(t, f.bus.ofType(protocol.TypeHeartbeat))

	// a new event revives the scope
	f.ingest(t, map[string]interface{}{"hook_event_name": "PreToolUse", "tool_name": "Bash"})
	sessions, err = f.svc.ListSessions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestStartHeartbeatLifecycle(t *testing.T) {
	s := settings.Defaults()
	s.HeartbeatIntervalSec = 1
	s.StaleAgentSeconds = 3600
	f := newFixture(t, s, nil)

	f.ingest(t, map[string]interface{}{"hook_event_name": "agent_started"})

	hb := f.svc.StartHeartbeat(context.Background())
	assert.Eventually(t, func() bool {
		return len(f.bus.ofType(protocol.TypeHeartbeat)) > 0
	}, 3*time.Second, 50*time.Millisecond)
	hb.Stop()

	count := len(f.bus.ofType(protocol.TypeHeartbeat))
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, count, len(f.bus.ofType(protocol.TypeHeartbeat)))
}
