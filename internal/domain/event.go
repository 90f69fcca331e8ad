package domain

// NormalizedEvent is the canonical form of an inbound hook event.
// It is created once by the normalizer and never mutated afterwards.
type NormalizedEvent struct {
	ID                string                 `json:"id"`
	Ts                int64                  `json:"ts"` // Unix milliseconds, ingestion time
	Type              EventType              `json:"type"`
	WorkspaceID       string                 `json:"workspace_id"`
	TerminalSessionID string                 `json:"terminal_session_id"`
	RunID             string                 `json:"run_id"`
	AgentID           string                 `json:"agent_id"`
	TaskID            string                 `json:"task_id,omitempty"`
	TargetAgentID     string                 `json:"target_agent_id,omitempty"`
	Severity          Severity               `json:"severity"`
	Locale            string                 `json:"locale,omitempty"`
	Payload           map[string]interface{} `json:"payload"`
}

// Well-known payload keys.
const (
	PayloadToolName     = "tool_name"
	PayloadErrorMessage = "error_message"
	PayloadThinking     = "thinking"
	PayloadRawEventName = "raw_event_name"
	PayloadTaskStatus   = "task_status"
	PayloadReason       = "reason"
)

// Scope returns the event's scope key.
func (e *NormalizedEvent) Scope() ScopeKey {
	return ScopeKey{WorkspaceID: e.WorkspaceID, TerminalSessionID: e.TerminalSessionID, RunID: e.RunID}
}

// PayloadString returns a string payload field, or "" when absent.
func (e *NormalizedEvent) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// ErrorMessage returns the tool error message carried by the event.
func (e *NormalizedEvent) ErrorMessage() string {
	return e.PayloadString(PayloadErrorMessage)
}

// Thinking returns the extracted thinking text, or nil when absent.
func (e *NormalizedEvent) Thinking() *string {
	s := e.PayloadString(PayloadThinking)
	if s == "" {
		return nil
	}
	return &s
}
