// Package statemachine derives agent status from normalized events and
// elapsed time. Everything here is pure: no storage, no clocks, no globals.
package statemachine

import (
	"fmt"
	"strings"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// AnyStatus matches every current status in a rule's From field.
const AnyStatus domain.AgentStatus = "*"

// Condition is an optional guard on a rule.
type Condition func(ev *domain.NormalizedEvent, p *Params) bool

// Rule is a single transition: (From, Event [, Condition]) -> To.
type Rule struct {
	From      domain.AgentStatus
	Event     domain.EventType
	To        domain.AgentStatus
	Condition Condition
}

func (r Rule) matches(current domain.AgentStatus, ev *domain.NormalizedEvent, p *Params) bool {
	if r.From != AnyStatus && r.From != current {
		return false
	}
	if r.Event != ev.Type {
		return false
	}
	return r.Condition == nil || r.Condition(ev, p)
}

// CompileRule validates a rule against the closed enumerations.
func CompileRule(from, event, to string, cond Condition) (Rule, error) {
	f := domain.AgentStatus(from)
	if f != AnyStatus && !f.Valid() {
		return Rule{}, fmt.Errorf("unknown from status %q", from)
	}
	e := domain.EventType(event)
	if !e.Valid() {
		return Rule{}, fmt.Errorf("unknown event type %q", event)
	}
	t := domain.AgentStatus(to)
	if !t.Valid() {
		return Rule{}, fmt.Errorf("unknown to status %q", to)
	}
	return Rule{From: f, Event: e, To: t, Condition: cond}, nil
}

// DefaultFatalPatterns are matched case-insensitively against tool error
// messages. The list is deliberately English-only.
var DefaultFatalPatterns = []string{"permission denied", "not found", "enoent"}

// IsFatalError reports whether msg contains one of the fatal patterns.
func IsFatalError(msg string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = DefaultFatalPatterns
	}
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func fatalToolError(ev *domain.NormalizedEvent, p *Params) bool {
	var patterns []string
	if p != nil {
		patterns = p.FatalPatterns
	}
	return IsFatalError(ev.ErrorMessage(), patterns)
}

var offDuty = []domain.AgentStatus{domain.AgentStatusRoaming, domain.AgentStatusBreakroom, domain.AgentStatusResting}

func fromEach(froms []domain.AgentStatus, event domain.EventType, to domain.AgentStatus) []Rule {
	rules := make([]Rule, 0, len(froms))
	for _, f := range froms {
		rules = append(rules, Rule{From: f, Event: event, To: to})
	}
	return rules
}

func join(groups ...[]Rule) []Rule {
	var out []Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// staticRules is the built-in transition table, in evaluation order.
var staticRules = join(
	[]Rule{
		{From: AnyStatus, Event: domain.EventTypeAgentStarted, To: domain.AgentStatusIdle},
		{From: AnyStatus, Event: domain.EventTypeAgentStopped, To: domain.AgentStatusOffline},
	},

	// task flow from productive states
	fromEach([]domain.AgentStatus{
		domain.AgentStatusIdle,
		domain.AgentStatusCompleted,
		domain.AgentStatusFailed,
		domain.AgentStatusPendingInput,
		domain.AgentStatusReturning,
	}, domain.EventTypeTaskStarted, domain.AgentStatusWorking),
	[]Rule{
		{From: domain.AgentStatusWorking, Event: domain.EventTypeTaskCompleted, To: domain.AgentStatusCompleted},
		{From: domain.AgentStatusWorking, Event: domain.EventTypeTaskFailed, To: domain.AgentStatusFailed},
		{From: domain.AgentStatusReturning, Event: domain.EventTypeTaskProgress, To: domain.AgentStatusWorking},
		{From: domain.AgentStatusReturning, Event: domain.EventTypeToolStarted, To: domain.AgentStatusWorking},
	},

	// off-duty agents walk back before resuming
	fromEach(offDuty, domain.EventTypeTaskStarted, domain.AgentStatusReturning),
	fromEach(offDuty, domain.EventTypeToolStarted, domain.AgentStatusReturning),

	// failures
	[]Rule{
		{From: domain.AgentStatusWorking, Event: domain.EventTypeToolFailed, To: domain.AgentStatusFailed, Condition: fatalToolError},
		{From: domain.AgentStatusWorking, Event: domain.EventTypeToolFailed, To: domain.AgentStatusPendingInput},
		{From: domain.AgentStatusWorking, Event: domain.EventTypeAgentBlocked, To: domain.AgentStatusPendingInput},
		{From: domain.AgentStatusIdle, Event: domain.EventTypeAgentBlocked, To: domain.AgentStatusPendingInput},
	},

	// recovery
	fromEach([]domain.AgentStatus{domain.AgentStatusFailed, domain.AgentStatusPendingInput}, domain.EventTypeAgentUnblocked, domain.AgentStatusWorking),
	[]Rule{
		{From: domain.AgentStatusPendingInput, Event: domain.EventTypeToolSucceeded, To: domain.AgentStatusWorking},
	},

	// collaboration choreography
	fromEach(append([]domain.AgentStatus{domain.AgentStatusIdle, domain.AgentStatusCompleted}, offDuty...), domain.EventTypeManagerAssign, domain.AgentStatusHandoff),
	[]Rule{
		{From: domain.AgentStatusHandoff, Event: domain.EventTypeMeetingStarted, To: domain.AgentStatusMeeting},
		{From: domain.AgentStatusMeeting, Event: domain.EventTypeMeetingEnded, To: domain.AgentStatusReturning},
	},
)

// StaticRules returns a copy of the built-in transition table.
func StaticRules() []Rule {
	out := make([]Rule, len(staticRules))
	copy(out, staticRules)
	return out
}
