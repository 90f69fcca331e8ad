package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/statemachine"
)

func TestCompileDefaults(t *testing.T) {
	c := MustDefaults()
	assert.Equal(t, 5*time.Second, c.HeartbeatInterval)
	assert.Equal(t, 120*time.Second, c.Machine.BreakroomAfter)
	assert.Equal(t, 300*time.Second, c.Machine.RestingAfter)
	assert.Equal(t, "en", c.TargetLanguage())
	assert.Empty(t, c.Machine.DynamicRules)
}

func TestCompileDropsUnknownRules(t *testing.T) {
	s := Defaults()
	s.TransitionRules = []RuleSpec{
		{From: "idle", Event: "task_started", To: "not_a_status"},
		{From: "idle", Event: "bogus_event", To: "working"},
		{From: "idle", Event: "task_started", To: "handoff"},
	}

	c, err := Compile(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, c.Machine.DynamicRules, 1)
	assert.Len(t, c.DroppedRules, 2)

	ev := &domain.NormalizedEvent{Type: domain.EventTypeTaskStarted}
	assert.Equal(t, domain.AgentStatusHandoff, statemachine.NextStatus(domain.AgentStatusIdle, ev, time.Time{}, &c.Machine))
}

func TestCompileRegoCondition(t *testing.T) {
	s := Defaults()
	s.TransitionRules = []RuleSpec{
		{From: "working", Event: "tool_failed", To: "failed", Condition: `contains(lower(input.payload.error_message), "quota")`},
		{From: "working", Event: "tool_failed", To: "idle", Condition: "input.type == "},
	}

	c, err := Compile(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, c.Machine.DynamicRules, 1)
	assert.Len(t, c.DroppedRules, 1)

	quota := &domain.NormalizedEvent{Type: domain.EventTypeToolFailed, Payload: map[string]interface{}{domain.PayloadErrorMessage: "Quota exceeded"}}
	assert.Equal(t, domain.AgentStatusFailed, statemachine.NextStatus(domain.AgentStatusWorking, quota, time.Time{}, &c.Machine))

	timeout := &domain.NormalizedEvent{Type: domain.EventTypeToolFailed, Payload: map[string]interface{}{domain.PayloadErrorMessage: "timeout"}}
	assert.Equal(t, domain.AgentStatusPendingInput, statemachine.NextStatus(domain.AgentStatusWorking, timeout, time.Time{}, &c.Machine))
}

func TestCompileRejectsBadWeightsAndThresholds(t *testing.T) {
	s := Defaults()
	s.PlacementWeights = &statemachine.PlacementWeights{Roaming: 0.8, Breakroom: 0.4}
	_, err := Compile(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	s = Defaults()
	s.IdleToBreakroomSec = 600
	s.IdleToRestingSec = 300
	_, err = Compile(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestStoreApplyKeepsPreviousOnError(t *testing.T) {
	store := NewStaticStore(MustDefaults())
	before := store.Current()

	bad := Defaults()
	bad.PlacementWeights = &statemachine.PlacementWeights{Roaming: 2}
	_, err := store.Apply(context.Background(), bad)
	require.Error(t, err)
	assert.Same(t, before, store.Current())

	var notified *Compiled
	store.OnChange(func(c *Compiled) { notified = c })

	good := Defaults()
	good.UILanguage = "ko"
	applied, err := store.Apply(context.Background(), good)
	require.NoError(t, err)
	assert.Same(t, applied, store.Current())
	assert.Same(t, applied, notified)
	assert.Equal(t, "ko", store.Current().Settings.UILanguage)
}

func TestNewStoreLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
ui_language: ja
translation_enabled: true
heartbeat_interval_sec: 2
idle_to_breakroom_sec: 30
idle_to_resting_sec: 90
transition_rules:
  - from: idle
    event: task_started
    to: handoff
  - from: idle
    event: task_started
    to: not_a_status
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := NewStore(context.Background(), path)
	require.NoError(t, err)

	c := store.Current()
	assert.Equal(t, "ja", c.Settings.UILanguage)
	assert.True(t, c.Settings.TranslationEnabled)
	assert.Equal(t, 2*time.Second, c.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, c.Machine.BreakroomAfter)
	assert.Len(t, c.Machine.DynamicRules, 1)
	// unset fields keep defaults
	assert.Equal(t, statemachine.DefaultPlacementWeights, c.Placement)
}

func TestParsePlacementWeightsBlock(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want statemachine.PlacementWeights
	}{
		{
			name: "absent keeps defaults",
			yaml: "ui_language: en\n",
			want: statemachine.DefaultPlacementWeights,
		},
		{
			name: "single weight",
			yaml: "placement_weights:\n  roaming: 1\n",
			want: statemachine.PlacementWeights{Roaming: 1},
		},
		{
			name: "partial block",
			yaml: "placement_weights:\n  roaming: 0.6\n  breakroom: 0.4\n",
			want: statemachine.PlacementWeights{Roaming: 0.6, Breakroom: 0.4},
		},
		{
			name: "all zero",
			yaml: "placement_weights:\n  roaming: 0\n  breakroom: 0\n  resting: 0\n",
			want: statemachine.PlacementWeights{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse([]byte(tc.yaml))
			require.NoError(t, err)
			c, err := Compile(context.Background(), parsed)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Placement)
		})
	}

	// all-zero weights send every finished agent to the last bucket
	parsed, err := Parse([]byte("placement_weights:\n  roaming: 0\n"))
	require.NoError(t, err)
	c, err := Compile(context.Background(), parsed)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusResting, statemachine.ResolvePlacement(c.Placement, 0))
}

func TestNewStoreLoadsPartialPlacementWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
ui_language: fr
placement_weights:
  roaming: 0.6
  breakroom: 0.4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := NewStore(context.Background(), path)
	require.NoError(t, err)

	c := store.Current()
	assert.Equal(t, "fr", c.Settings.UILanguage)
	assert.Equal(t, statemachine.PlacementWeights{Roaming: 0.6, Breakroom: 0.4}, c.Placement)
}

func TestNewStoreMissingFileUsesDefaults(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "en", store.Current().Settings.UILanguage)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui_language: en\n"), 0o644))

	store, err := NewStore(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.Watch(ctx)

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("ui_language: de\n"), 0o644))

	assert.Eventually(t, func() bool {
		return store.Current().Settings.UILanguage == "de"
	}, 2*time.Second, 20*time.Millisecond)
}
