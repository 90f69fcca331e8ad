package statemachine

import (
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
)

const (
	// HandoffGrace is how long an agent may wait in handoff for a meeting.
	HandoffGrace = 10 * time.Second
	// MeetingGrace is how long a meeting may run without meeting_ended.
	MeetingGrace = 15 * time.Second
)

// CheckTimerTransitions evaluates the elapsed-time transitions for status,
// which has been held since since. ok is false when nothing is due.
func CheckTimerTransitions(status domain.AgentStatus, since, now time.Time, p *Params) (next domain.AgentStatus, ok bool) {
	if p == nil {
		p = DefaultParams()
	}
	elapsed := now.Sub(since)

	switch status {
	case domain.AgentStatusIdle:
		// longest threshold first
		if p.RestingAfter > 0 && elapsed > p.RestingAfter {
			return domain.AgentStatusResting, true
		}
		if p.BreakroomAfter > 0 && elapsed > p.BreakroomAfter {
			return domain.AgentStatusBreakroom, true
		}
	case domain.AgentStatusHandoff:
		if elapsed > HandoffGrace {
			return domain.AgentStatusReturning, true
		}
	case domain.AgentStatusMeeting:
		if elapsed > MeetingGrace {
			return domain.AgentStatusReturning, true
		}
	}
	return "", false
}
