package statemachine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/hookwatch/internal/domain"
)

func event(t domain.EventType) *domain.NormalizedEvent {
	return &domain.NormalizedEvent{ID: "evt_test", Type: t, Payload: map[string]interface{}{}}
}

func toolFailed(msg string) *domain.NormalizedEvent {
	ev := event(domain.EventTypeToolFailed)
	ev.Payload[domain.PayloadErrorMessage] = msg
	return ev
}

func TestNextStatusStaticTable(t *testing.T) {
	cases := []struct {
		from  domain.AgentStatus
		event domain.EventType
		want  domain.AgentStatus
	}{
		{domain.AgentStatusWorking, domain.EventTypeAgentStarted, domain.AgentStatusIdle},
		{domain.AgentStatusOffline, domain.EventTypeAgentStarted, domain.AgentStatusIdle},
		{domain.AgentStatusMeeting, domain.EventTypeAgentStopped, domain.AgentStatusOffline},
		{domain.AgentStatusIdle, domain.EventTypeTaskStarted, domain.AgentStatusWorking},
		{domain.AgentStatusCompleted, domain.EventTypeTaskStarted, domain.AgentStatusWorking},
		{domain.AgentStatusWorking, domain.EventTypeTaskCompleted, domain.AgentStatusCompleted},
		{domain.AgentStatusWorking, domain.EventTypeTaskFailed, domain.AgentStatusFailed},
		{domain.AgentStatusRoaming, domain.EventTypeTaskStarted, domain.AgentStatusReturning},
		{domain.AgentStatusBreakroom, domain.EventTypeTaskStarted, domain.AgentStatusReturning},
		{domain.AgentStatusResting, domain.EventTypeTaskStarted, domain.AgentStatusReturning},
		{domain.AgentStatusReturning, domain.EventTypeTaskStarted, domain.AgentStatusWorking},
		{domain.AgentStatusFailed, domain.EventTypeAgentUnblocked, domain.AgentStatusWorking},
		{domain.AgentStatusPendingInput, domain.EventTypeAgentUnblocked, domain.AgentStatusWorking},
		{domain.AgentStatusWorking, domain.EventTypeAgentBlocked, domain.AgentStatusPendingInput},
		{domain.AgentStatusIdle, domain.EventTypeManagerAssign, domain.AgentStatusHandoff},
		{domain.AgentStatusResting, domain.EventTypeManagerAssign, domain.AgentStatusHandoff},
		{domain.AgentStatusHandoff, domain.EventTypeMeetingStarted, domain.AgentStatusMeeting},
		{domain.AgentStatusMeeting, domain.EventTypeMeetingEnded, domain.AgentStatusReturning},
		// no matching rule leaves status unchanged
		{domain.AgentStatusWorking, domain.EventTypeToolSucceeded, domain.AgentStatusWorking},
		{domain.AgentStatusIdle, domain.EventTypeTaskCompleted, domain.AgentStatusIdle},
		{domain.AgentStatusOffline, domain.EventTypeSchemaError, domain.AgentStatusOffline},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.event), func(t *testing.T) {
			got := NextStatus(tc.from, event(tc.event), time.Time{}, DefaultParams())
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextStatusDeterministicAcrossCallOrder(t *testing.T) {
	p := DefaultParams()
	first := NextStatus(domain.AgentStatusIdle, event(domain.EventTypeTaskStarted), time.Time{}, p)
	NextStatus(domain.AgentStatusWorking, toolFailed("permission denied"), time.Time{}, p)
	NextStatus(domain.AgentStatusMeeting, event(domain.EventTypeMeetingEnded), time.Time{}, p)
	second := NextStatus(domain.AgentStatusIdle, event(domain.EventTypeTaskStarted), time.Time{}, p)
	assert.Equal(t, first, second)
}

func TestToolFailedFatalVersusRecoverable(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, domain.AgentStatusFailed,
		NextStatus(domain.AgentStatusWorking, toolFailed("permission denied: /etc/shadow"), time.Time{}, p))
	assert.Equal(t, domain.AgentStatusFailed,
		NextStatus(domain.AgentStatusWorking, toolFailed("ENOENT: no such file"), time.Time{}, p))
	assert.Equal(t, domain.AgentStatusFailed,
		NextStatus(domain.AgentStatusWorking, toolFailed("command Not Found"), time.Time{}, p))
	assert.Equal(t, domain.AgentStatusPendingInput,
		NextStatus(domain.AgentStatusWorking, toolFailed("timeout"), time.Time{}, p))
}

func TestDynamicRuleTakesPrecedence(t *testing.T) {
	rule, err := CompileRule("idle", "task_started", "handoff", nil)
	require.NoError(t, err)

	p := DefaultParams()
	p.DynamicRules = []Rule{rule}

	assert.Equal(t, domain.AgentStatusHandoff,
		NextStatus(domain.AgentStatusIdle, event(domain.EventTypeTaskStarted), time.Time{}, p))
	// other pairs still fall through to the static table
	assert.Equal(t, domain.AgentStatusCompleted,
		NextStatus(domain.AgentStatusWorking, event(domain.EventTypeTaskCompleted), time.Time{}, p))
}

func TestDynamicRuleWithConditionFallsThrough(t *testing.T) {
	never := func(*domain.NormalizedEvent, *Params) bool { return false }
	rule, err := CompileRule("*", "task_started", "meeting", never)
	require.NoError(t, err)

	p := DefaultParams()
	p.DynamicRules = []Rule{rule}

	assert.Equal(t, domain.AgentStatusWorking,
		NextStatus(domain.AgentStatusIdle, event(domain.EventTypeTaskStarted), time.Time{}, p))
}

func TestCompileRuleRejectsUnknownValues(t *testing.T) {
	_, err := CompileRule("idle", "task_started", "not_a_status", nil)
	assert.Error(t, err)
	_, err = CompileRule("sleeping", "task_started", "idle", nil)
	assert.Error(t, err)
	_, err = CompileRule("idle", "not_an_event", "idle", nil)
	assert.Error(t, err)
	_, err = CompileRule("*", "agent_blocked", "pending_input", nil)
	assert.NoError(t, err)
}

func TestEffectiveRulesOrder(t *testing.T) {
	rule, err := CompileRule("idle", "task_started", "handoff", nil)
	require.NoError(t, err)
	p := &Params{DynamicRules: []Rule{rule}}

	rules := EffectiveRules(p)
	require.Len(t, rules, len(StaticRules())+1)
	assert.Equal(t, domain.AgentStatusHandoff, rules[0].To)
}

func TestReplayScenario(t *testing.T) {
	events := []domain.NormalizedEvent{
		*event(domain.EventTypeAgentStarted),
		*event(domain.EventTypeTaskStarted),
		*event(domain.EventTypeToolSucceeded),
		*event(domain.EventTypeTaskCompleted),
	}
	assert.Equal(t, domain.AgentStatusCompleted, Replay(events, DefaultParams()))
	assert.Equal(t, domain.AgentStatusWorking, Replay(events[:3], DefaultParams()))
}
