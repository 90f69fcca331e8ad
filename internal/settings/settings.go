// Package settings holds operator settings. Every write is validated and
// compiled once into an immutable Compiled value that callers pass explicitly
// into the normalizer, the state machine and the heartbeat ticker.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/statemachine"
	"github.com/xiaot623/hookwatch/policy"
)

// ErrInvalidSettings is returned when a settings write is rejected.
var ErrInvalidSettings = errors.New("invalid settings")

// RuleSpec is an operator-supplied transition rule as written in the file.
// Condition is an optional rego body evaluated against the event.
type RuleSpec struct {
	From      string `yaml:"from" json:"from"`
	Event     string `yaml:"event" json:"event"`
	To        string `yaml:"to" json:"to"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Settings is the operator-editable configuration.
type Settings struct {
	UILanguage           string                         `yaml:"ui_language" json:"ui_language"`
	TranslationEnabled   bool                           `yaml:"translation_enabled" json:"translation_enabled"`
	TranslationTarget    string                         `yaml:"translation_target" json:"translation_target"`
	HeartbeatIntervalSec int                            `yaml:"heartbeat_interval_sec" json:"heartbeat_interval_sec"`
	StaleAgentSeconds    int                            `yaml:"stale_agent_seconds" json:"stale_agent_seconds"`
	IdleToBreakroomSec   int                            `yaml:"idle_to_breakroom_sec" json:"idle_to_breakroom_sec"`
	IdleToRestingSec     int                            `yaml:"idle_to_resting_sec" json:"idle_to_resting_sec"`
	PlacementWeights     *statemachine.PlacementWeights `yaml:"placement_weights" json:"placement_weights"`
	FatalErrorPatterns   []string                       `yaml:"fatal_error_patterns" json:"fatal_error_patterns"`
	TransitionRules      []RuleSpec                     `yaml:"transition_rules" json:"transition_rules"`
}

// Defaults returns the settings used when no file is configured.
func Defaults() Settings {
	weights := statemachine.DefaultPlacementWeights
	return Settings{
		UILanguage:           "en",
		HeartbeatIntervalSec: 5,
		StaleAgentSeconds:    120,
		IdleToBreakroomSec:   120,
		IdleToRestingSec:     300,
		PlacementWeights:     &weights,
		FatalErrorPatterns:   append([]string(nil), statemachine.DefaultFatalPatterns...),
	}
}

// Compiled is a validated, ready-to-use view of Settings.
type Compiled struct {
	Settings Settings

	Machine           statemachine.Params
	Placement         statemachine.PlacementWeights
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration

	// DroppedRules lists the rules rejected during compilation.
	DroppedRules []string
}

// TargetLanguage is the language thinking text is translated into.
func (c *Compiled) TargetLanguage() string {
	if c.Settings.TranslationTarget != "" {
		return c.Settings.TranslationTarget
	}
	return c.Settings.UILanguage
}

// Compile validates s and builds the engine parameters. Rules that reference
// unknown statuses or events, or whose condition does not compile, are
// dropped; bad weights or thresholds reject the whole write.
func Compile(ctx context.Context, s Settings) (*Compiled, error) {
	fillDefaults(&s)

	weights := *s.PlacementWeights
	s.PlacementWeights = &weights
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.IdleToBreakroomSec < 0 || s.IdleToRestingSec < 0 || s.StaleAgentSeconds < 0 {
		return nil, fmt.Errorf("%w: thresholds must be non-negative", ErrInvalidSettings)
	}
	if s.IdleToBreakroomSec > 0 && s.IdleToRestingSec > 0 && s.IdleToRestingSec <= s.IdleToBreakroomSec {
		return nil, fmt.Errorf("%w: idle_to_resting_sec must exceed idle_to_breakroom_sec", ErrInvalidSettings)
	}

	c := &Compiled{
		Settings:          s,
		Placement:         weights,
		HeartbeatInterval: time.Duration(s.HeartbeatIntervalSec) * time.Second,
		StaleAfter:        time.Duration(s.StaleAgentSeconds) * time.Second,
		Machine: statemachine.Params{
			FatalPatterns:  s.FatalErrorPatterns,
			BreakroomAfter: time.Duration(s.IdleToBreakroomSec) * time.Second,
			RestingAfter:   time.Duration(s.IdleToRestingSec) * time.Second,
		},
	}

	for i, spec := range s.TransitionRules {
		rule, err := compileRule(ctx, spec)
		if err != nil {
			c.DroppedRules = append(c.DroppedRules, fmt.Sprintf("rule %d: %v", i, err))
			slog.Warn("Dropping transition rule", "index", i, "from", spec.From, "event", spec.Event, "to", spec.To, "error", err)
			continue
		}
		c.Machine.DynamicRules = append(c.Machine.DynamicRules, rule)
	}

	return c, nil
}

// MustDefaults compiles Defaults. The defaults always compile.
func MustDefaults() *Compiled {
	c, err := Compile(context.Background(), Defaults())
	if err != nil {
		panic("settings: defaults do not compile: " + err.Error())
	}
	return c
}

func compileRule(ctx context.Context, spec RuleSpec) (statemachine.Rule, error) {
	var cond statemachine.Condition
	if spec.Condition != "" {
		engine, err := policy.NewConditionEngine(ctx, spec.Condition)
		if err != nil {
			return statemachine.Rule{}, err
		}
		cond = func(ev *domain.NormalizedEvent, _ *statemachine.Params) bool {
			return engine.Match(ev)
		}
	}
	return statemachine.CompileRule(spec.From, spec.Event, spec.To, cond)
}

func fillDefaults(s *Settings) {
	d := Defaults()
	if s.UILanguage == "" {
		s.UILanguage = d.UILanguage
	}
	if s.HeartbeatIntervalSec <= 0 {
		s.HeartbeatIntervalSec = d.HeartbeatIntervalSec
	}
	if s.StaleAgentSeconds == 0 {
		s.StaleAgentSeconds = d.StaleAgentSeconds
	}
	if s.IdleToBreakroomSec == 0 && s.IdleToRestingSec == 0 {
		s.IdleToBreakroomSec = d.IdleToBreakroomSec
		s.IdleToRestingSec = d.IdleToRestingSec
	}
	// a block that is present replaces the defaults as a whole
	if s.PlacementWeights == nil {
		s.PlacementWeights = d.PlacementWeights
	}
	if len(s.FatalErrorPatterns) == 0 {
		s.FatalErrorPatterns = d.FatalErrorPatterns
	}
}
