package domain

import "time"

// AgentContext is the last known correlation of an agent. It is replaced
// wholesale on every update.
type AgentContext struct {
	TaskID      string `json:"task_id,omitempty"`
	PeerAgentID string `json:"peer_agent_id,omitempty"`
}

// AgentState is the derived state of one agent. Rows are never deleted.
type AgentState struct {
	AgentID           string       `json:"agent_id"`
	WorkspaceID       string       `json:"workspace_id"`
	TerminalSessionID string       `json:"terminal_session_id"`
	RunID             string       `json:"run_id"`
	Name              string       `json:"name"`
	Role              AgentRole    `json:"role"`
	Status            AgentStatus  `json:"status"`
	Since             time.Time    `json:"since"`
	Position          string       `json:"position"`
	HomePosition      string       `json:"home_position"`
	Context           AgentContext `json:"context"`
	ThinkingText      *string      `json:"thinking_text,omitempty"`
	LastEventID       string       `json:"last_event_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Scope returns the scope the agent was last seen in.
func (a *AgentState) Scope() ScopeKey {
	return ScopeKey{WorkspaceID: a.WorkspaceID, TerminalSessionID: a.TerminalSessionID, RunID: a.RunID}
}
