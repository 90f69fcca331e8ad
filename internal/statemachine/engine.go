package statemachine

import (
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// Params is the compiled, settings-derived input to the engine. It is built
// once per settings write and passed explicitly into every call.
type Params struct {
	// DynamicRules are operator rules, already validated. They are checked
	// before the static table.
	DynamicRules []Rule

	// FatalPatterns decide the tool_failed branch while working.
	FatalPatterns []string

	// BreakroomAfter and RestingAfter are the idle thresholds. Zero disables.
	BreakroomAfter time.Duration
	RestingAfter   time.Duration
}

// DefaultParams returns the engine parameters used without operator settings.
func DefaultParams() *Params {
	return &Params{
		FatalPatterns:  DefaultFatalPatterns,
		BreakroomAfter: 120 * time.Second,
		RestingAfter:   300 * time.Second,
	}
}

// EffectiveRules returns dynamic rules followed by static rules.
func EffectiveRules(p *Params) []Rule {
	var dynamic []Rule
	if p != nil {
		dynamic = p.DynamicRules
	}
	rules := make([]Rule, 0, len(dynamic)+len(staticRules))
	rules = append(rules, dynamic...)
	return append(rules, staticRules...)
}

// NextStatus returns the status an agent moves to when ev arrives while it is
// in current. Unknown transitions leave the status unchanged.
func NextStatus(current domain.AgentStatus, ev *domain.NormalizedEvent, since time.Time, p *Params) domain.AgentStatus {
	if ev == nil {
		return current
	}
	if p == nil {
		p = DefaultParams()
	}
	for _, r := range p.DynamicRules {
		if r.matches(current, ev, p) {
			return r.To
		}
	}
	for _, r := range staticRules {
		if r.matches(current, ev, p) {
			return r.To
		}
	}
	return current
}

// Replay folds events through NextStatus starting from idle.
func Replay(events []domain.NormalizedEvent, p *Params) domain.AgentStatus {
	status := domain.AgentStatusIdle
	var since time.Time
	for i := range events {
		next := NextStatus(status, &events[i], since, p)
		if next != status {
			status = next
			since = time.UnixMilli(events[i].Ts)
		}
	}
	return status
}
