package domain

import "strings"

// ScopeWildcard matches any value of a scope field.
const ScopeWildcard = "*"

// ScopeKey identifies one tracked terminal/run.
type ScopeKey struct {
	WorkspaceID       string `json:"workspace_id"`
	TerminalSessionID string `json:"terminal_session_id"`
	RunID             string `json:"run_id"`
}

// AllScopes matches every scope.
var AllScopes = ScopeKey{WorkspaceID: ScopeWildcard, TerminalSessionID: ScopeWildcard, RunID: ScopeWildcard}

// NewScopeKey builds a scope key, filling empty fields with the wildcard.
func NewScopeKey(workspaceID, terminalSessionID, runID string) ScopeKey {
	return ScopeKey{
		WorkspaceID:       orWildcard(workspaceID),
		TerminalSessionID: orWildcard(terminalSessionID),
		RunID:             orWildcard(runID),
	}
}

// ParseScopeKey parses the "workspace:terminal:run" string form.
func ParseScopeKey(s string) (ScopeKey, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ScopeKey{}, false
	}
	return NewScopeKey(parts[0], parts[1], parts[2]), true
}

// String returns the "workspace:terminal:run" form.
func (k ScopeKey) String() string {
	return k.WorkspaceID + ":" + k.TerminalSessionID + ":" + k.RunID
}

// IsZero reports whether no field is set.
func (k ScopeKey) IsZero() bool {
	return k.WorkspaceID == "" && k.TerminalSessionID == "" && k.RunID == ""
}

// Matches reports whether the concrete scope other falls under k, honoring
// per-field wildcards in k.
func (k ScopeKey) Matches(other ScopeKey) bool {
	return fieldMatches(k.WorkspaceID, other.WorkspaceID) &&
		fieldMatches(k.TerminalSessionID, other.TerminalSessionID) &&
		fieldMatches(k.RunID, other.RunID)
}

func fieldMatches(pattern, value string) bool {
	return pattern == "" || pattern == ScopeWildcard || pattern == value
}

func orWildcard(s string) string {
	if s == "" {
		return ScopeWildcard
	}
	return s
}
