package domain

// StateUpdateData is the data of a state_update broadcast.
// TriggeredByEventID is nil for timer-driven transitions.
type StateUpdateData struct {
	AgentID            string       `json:"agent_id"`
	OldStatus          AgentStatus  `json:"old_status"`
	NewStatus          AgentStatus  `json:"new_status"`
	Position           string       `json:"position,omitempty"`
	Context            AgentContext `json:"context"`
	Thinking           *string      `json:"thinking,omitempty"`
	Ts                 int64        `json:"ts"`
	TriggeredByEventID *string      `json:"triggered_by_event_id"`
}

// TaskUpdateData is the data of a task_update broadcast.
type TaskUpdateData struct {
	Task    *Task  `json:"task"`
	EventID string `json:"event_id"`
}

// HeartbeatData is the data of a heartbeat broadcast.
type HeartbeatData struct {
	Scope      string `json:"scope"`
	Ts         int64  `json:"ts"`
	AgentCount int    `json:"agent_count"`
}

// RuntimeErrorData is the data of a runtime_error broadcast.
type RuntimeErrorData struct {
	ErrorID string `json:"error_id"`
	Source  string `json:"source"`
	Message string `json:"message"`
	EventID string `json:"event_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Ts      int64  `json:"ts"`
}

// Snapshot is the full state pushed to a viewer on connect and subscribe.
type Snapshot struct {
	Agents       []AgentState      `json:"agents"`
	Tasks        []Task            `json:"tasks"`
	Sessions     []Session         `json:"sessions"`
	RecentEvents []NormalizedEvent `json:"recent_events"`
	Settings     interface{}       `json:"settings"`
}
