package domain

// IngestResponse is returned after a hook payload was accepted.
type IngestResponse struct {
	OK           bool   `json:"ok"`
	EventID      string `json:"event_id"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
}

// ErrorResponse is returned when ingestion or a query failed.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// EventContext is the neighbourhood of a pivot event, plus the agent status
// replayed up to and including the pivot.
type EventContext struct {
	Event          NormalizedEvent   `json:"event"`
	Before         []NormalizedEvent `json:"before"`
	After          []NormalizedEvent `json:"after"`
	StatusAtEvent  AgentStatus       `json:"status_at_event"`
	ReplayedEvents int               `json:"replayed_events"`
}

// EventQuery filters the event log.
type EventQuery struct {
	Scopes  []ScopeKey
	AgentID string
	SinceTs int64
	UntilTs int64
	Types   []string
	Limit   int
	// Latest selects the newest Limit events instead of the oldest.
	// Results are still returned in ascending order.
	Latest bool
}
