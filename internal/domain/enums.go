// Package domain defines the core domain models for hookwatch.
package domain

// AgentStatus represents the canonical status of an agent.
type AgentStatus string

const (
	AgentStatusIdle         AgentStatus = "idle"
	AgentStatusWorking      AgentStatus = "working"
	AgentStatusHandoff      AgentStatus = "handoff"
	AgentStatusMeeting      AgentStatus = "meeting"
	AgentStatusReturning    AgentStatus = "returning"
	AgentStatusPendingInput AgentStatus = "pending_input"
	AgentStatusFailed       AgentStatus = "failed"
	AgentStatusCompleted    AgentStatus = "completed"
	AgentStatusRoaming      AgentStatus = "roaming"
	AgentStatusBreakroom    AgentStatus = "breakroom"
	AgentStatusResting      AgentStatus = "resting"
	AgentStatusOffline      AgentStatus = "offline"
)

var agentStatuses = map[AgentStatus]bool{
	AgentStatusIdle:         true,
	AgentStatusWorking:      true,
	AgentStatusHandoff:      true,
	AgentStatusMeeting:      true,
	AgentStatusReturning:    true,
	AgentStatusPendingInput: true,
	AgentStatusFailed:       true,
	AgentStatusCompleted:    true,
	AgentStatusRoaming:      true,
	AgentStatusBreakroom:    true,
	AgentStatusResting:      true,
	AgentStatusOffline:      true,
}

// Valid reports whether s is a member of the closed status enumeration.
func (s AgentStatus) Valid() bool {
	return agentStatuses[s]
}

// OffDuty reports whether the agent is away from its seat.
func (s AgentStatus) OffDuty() bool {
	return s == AgentStatusRoaming || s == AgentStatusBreakroom || s == AgentStatusResting
}

// EventType represents the semantic kind of a normalized event.
type EventType string

const (
	EventTypeAgentStarted   EventType = "agent_started"
	EventTypeAgentStopped   EventType = "agent_stopped"
	EventTypeAgentBlocked   EventType = "agent_blocked"
	EventTypeAgentUnblocked EventType = "agent_unblocked"

	// Task events
	EventTypeTaskCreated   EventType = "task_created"
	EventTypeTaskStarted   EventType = "task_started"
	EventTypeTaskProgress  EventType = "task_progress"
	EventTypeTaskCompleted EventType = "task_completed"
	EventTypeTaskFailed    EventType = "task_failed"

	// Tool events
	EventTypeToolStarted   EventType = "tool_started"
	EventTypeToolSucceeded EventType = "tool_succeeded"
	EventTypeToolFailed    EventType = "tool_failed"

	// Collaboration events
	EventTypeManagerAssign  EventType = "manager_assign"
	EventTypeMeetingStarted EventType = "meeting_started"
	EventTypeMeetingEnded   EventType = "meeting_ended"

	EventTypeSchemaError EventType = "schema_error"
)

var eventTypes = map[EventType]bool{
	EventTypeAgentStarted:   true,
	EventTypeAgentStopped:   true,
	EventTypeAgentBlocked:   true,
	EventTypeAgentUnblocked: true,
	EventTypeTaskCreated:    true,
	EventTypeTaskStarted:    true,
	EventTypeTaskProgress:   true,
	EventTypeTaskCompleted:  true,
	EventTypeTaskFailed:     true,
	EventTypeToolStarted:    true,
	EventTypeToolSucceeded:  true,
	EventTypeToolFailed:     true,
	EventTypeManagerAssign:  true,
	EventTypeMeetingStarted: true,
	EventTypeMeetingEnded:   true,
	EventTypeSchemaError:    true,
}

// Valid reports whether t is a member of the closed event type enumeration.
func (t EventType) Valid() bool {
	return eventTypes[t]
}

// Severity represents the severity of an event.
type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// AgentRole represents the role of an agent inside a workspace.
type AgentRole string

const (
	AgentRoleManager AgentRole = "manager"
	AgentRoleWorker  AgentRole = "worker"
)

// SessionStatus represents the liveness of a tracked scope.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusInactive SessionStatus = "inactive"
)

// TaskStatus represents the status of a tracked task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskStatusFor maps a task event type to the task status it implies.
// ok is false for events that do not change a task's status.
func TaskStatusFor(t EventType) (status TaskStatus, ok bool) {
	switch t {
	case EventTypeTaskCreated:
		return TaskStatusPending, true
	case EventTypeTaskStarted, EventTypeTaskProgress:
		return TaskStatusInProgress, true
	case EventTypeTaskCompleted:
		return TaskStatusCompleted, true
	case EventTypeTaskFailed:
		return TaskStatusFailed, true
	default:
		return "", false
	}
}
