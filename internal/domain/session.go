package domain

import "time"

// Session tracks the heartbeat of one scope.
type Session struct {
	WorkspaceID       string        `json:"workspace_id"`
	TerminalSessionID string        `json:"terminal_session_id"`
	RunID             string        `json:"run_id"`
	Status            SessionStatus `json:"status"`
	StartedAt         time.Time     `json:"started_at"`
	LastHeartbeatAt   time.Time     `json:"last_heartbeat_at"`
}

// Scope returns the session's scope key.
func (s *Session) Scope() ScopeKey {
	return ScopeKey{WorkspaceID: s.WorkspaceID, TerminalSessionID: s.TerminalSessionID, RunID: s.RunID}
}

// Task tracks the status of a task correlated by task_id.
type Task struct {
	TaskID            string     `json:"task_id"`
	WorkspaceID       string     `json:"workspace_id"`
	TerminalSessionID string     `json:"terminal_session_id"`
	RunID             string     `json:"run_id"`
	AgentID           string     `json:"agent_id"`
	Status            TaskStatus `json:"status"`
	LastEventID       string     `json:"last_event_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Scope returns the task's scope key.
func (t *Task) Scope() ScopeKey {
	return ScopeKey{WorkspaceID: t.WorkspaceID, TerminalSessionID: t.TerminalSessionID, RunID: t.RunID}
}
