// Package normalizer turns raw hook payloads into NormalizedEvents.
package normalizer

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/settings"
)

// Raw hook event names.
const (
	HookSubagentStart    = "SubagentStart"
	HookSubagentStop     = "SubagentStop"
	HookStop             = "Stop"
	HookNotification     = "Notification"
	HookPreToolUse       = "PreToolUse"
	HookPostToolUse      = "PostToolUse"
	HookUserPromptSubmit = "UserPromptSubmit"
)

// DefaultScopeValue fills scope fields the payload does not carry.
const DefaultScopeValue = "default"

// LeaderName is the short name of the agent that owns a terminal.
const LeaderName = "leader"

var taskCreationTools = map[string]bool{
	"Task":       true,
	"TaskCreate": true,
}

var taskTools = map[string]bool{
	"Task":       true,
	"TaskCreate": true,
	"TaskUpdate": true,
	"TodoWrite":  true,
}

// ValidationError is returned when a payload fails shape checks.
// Callers respond with a client error and must not retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid hook payload: " + e.Reason
	}
	return fmt.Sprintf("invalid hook payload: %s %s", e.Field, e.Reason)
}

// Normalize converts a raw hook body into a NormalizedEvent. now is the
// ingestion time; s supplies the locale fallback.
func Normalize(raw map[string]interface{}, s *settings.Compiled, now time.Time) (*domain.NormalizedEvent, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Reason: "payload is empty"}
	}

	eventName, err := optionalString(raw, "hook_event_name")
	if err != nil {
		return nil, err
	}
	if eventName == "" {
		if eventName, err = optionalString(raw, "event"); err != nil {
			return nil, err
		}
	}

	scope, err := resolveScope(raw)
	if err != nil {
		return nil, err
	}

	toolName, _ := raw["tool_name"].(string)
	errMsg, hasError := extractError(raw)
	eventType := classify(eventName, toolName, hasError, raw)

	agentID, err := resolveAgentID(raw, eventName, scope.WorkspaceID)
	if err != nil {
		return nil, err
	}

	ev := &domain.NormalizedEvent{
		ID:                Fingerprint(sessionKey(raw, scope), toolName, now, raw),
		Ts:                now.UnixMilli(),
		Type:              eventType,
		WorkspaceID:       scope.WorkspaceID,
		TerminalSessionID: scope.TerminalSessionID,
		RunID:             scope.RunID,
		AgentID:           agentID,
		TaskID:            taskID(raw),
		Severity:          severityFor(eventType),
		Locale:            resolveLocale(raw, s),
		Payload:           map[string]interface{}{domain.PayloadRawEventName: eventName},
	}
	if target, ok := raw["target_agent_id"].(string); ok && target != "" {
		ev.TargetAgentID = qualify(target, scope.WorkspaceID)
	}

	if toolName != "" {
		ev.Payload[domain.PayloadToolName] = toolName
	}
	if hasError {
		ev.Payload[domain.PayloadErrorMessage] = errMsg
	}
	if thinking := ExtractThinking(raw); thinking != nil {
		ev.Payload[domain.PayloadThinking] = *thinking
	}
	if status := toolStatus(raw); status != "" {
		ev.Payload[domain.PayloadTaskStatus] = status
	}
	if msg, ok := raw["message"].(string); ok && msg != "" {
		ev.Payload[domain.PayloadReason] = msg
	}
	if eventType == domain.EventTypeSchemaError {
		ev.Payload["raw"] = raw
	}
	return ev, nil
}

// classify derives the semantic type; first match wins.
func classify(eventName, toolName string, hasError bool, raw map[string]interface{}) domain.EventType {
	switch eventName {
	case HookSubagentStart:
		return domain.EventTypeAgentStarted
	case HookSubagentStop, HookStop:
		return domain.EventTypeAgentStopped
	case HookNotification:
		return domain.EventTypeAgentBlocked
	case HookPreToolUse:
		if taskCreationTools[toolName] {
			return domain.EventTypeTaskCreated
		}
		return domain.EventTypeToolStarted
	case HookPostToolUse:
		if hasError {
			return domain.EventTypeToolFailed
		}
		if taskTools[toolName] {
			switch toolStatus(raw) {
			case "started":
				return domain.EventTypeTaskStarted
			case "completed":
				return domain.EventTypeTaskCompleted
			case "failed":
				return domain.EventTypeTaskFailed
			default:
				return domain.EventTypeTaskProgress
			}
		}
		return domain.EventTypeToolSucceeded
	case HookUserPromptSubmit:
		return domain.EventTypeAgentUnblocked
	}

	if t := domain.EventType(eventName); t.Valid() {
		return t
	}
	return domain.EventTypeSchemaError
}

func severityFor(t domain.EventType) domain.Severity {
	switch t {
	case domain.EventTypeToolFailed, domain.EventTypeTaskFailed:
		return domain.SeverityError
	case domain.EventTypeAgentBlocked, domain.EventTypeSchemaError:
		return domain.SeverityWarn
	default:
		return domain.SeverityInfo
	}
}

func resolveScope(raw map[string]interface{}) (domain.ScopeKey, error) {
	var scope domain.ScopeKey
	var err error

	if scope.WorkspaceID, err = optionalString(raw, "workspace_id"); err != nil {
		return scope, err
	}
	if scope.WorkspaceID == "" {
		if cwd, _ := raw["cwd"].(string); cwd != "" {
			if base := filepath.Base(filepath.Clean(cwd)); base != "." && base != string(filepath.Separator) {
				scope.WorkspaceID = base
			}
		}
	}

	if scope.TerminalSessionID, err = optionalString(raw, "terminal_session_id"); err != nil {
		return scope, err
	}

	if scope.RunID, err = optionalString(raw, "run_id"); err != nil {
		return scope, err
	}
	if scope.RunID == "" {
		if scope.RunID, err = optionalString(raw, "session_id"); err != nil {
			return scope, err
		}
	}

	scope.WorkspaceID = orDefault(scope.WorkspaceID)
	scope.TerminalSessionID = orDefault(scope.TerminalSessionID)
	scope.RunID = orDefault(scope.RunID)
	return scope, nil
}

func resolveAgentID(raw map[string]interface{}, eventName, workspaceID string) (string, error) {
	for _, key := range []string{"agent_name", "agent_id"} {
		name, err := optionalString(raw, key)
		if err != nil {
			return "", err
		}
		if name != "" {
			return qualify(name, workspaceID), nil
		}
	}
	if eventName == HookSubagentStart || eventName == HookSubagentStop {
		if name, _ := raw["agent_type"].(string); name != "" {
			return qualify(name, workspaceID), nil
		}
	}
	return qualify(LeaderName, workspaceID), nil
}

// qualify builds the composite "<workspace>/<short-name>" id.
func qualify(name, workspaceID string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return workspaceID + "/" + name
}

// ShortName returns the short-name part of a composite agent id.
func ShortName(agentID string) string {
	if i := strings.LastIndex(agentID, "/"); i >= 0 {
		return agentID[i+1:]
	}
	return agentID
}

func taskID(raw map[string]interface{}) string {
	if id := stringish(raw["task_id"]); id != "" {
		return id
	}
	input, _ := raw["tool_input"].(map[string]interface{})
	for _, key := range []string{"task_id", "taskId"} {
		if id := stringish(input[key]); id != "" {
			return id
		}
	}
	return ""
}

// toolStatus reads the status sub-field of a task tool call.
func toolStatus(raw map[string]interface{}) string {
	for _, key := range []string{"tool_response", "tool_input"} {
		m, _ := raw[key].(map[string]interface{})
		if status, _ := m["status"].(string); status != "" {
			return strings.ToLower(status)
		}
	}
	return ""
}

// extractError reports whether the payload carries a non-empty error.
func extractError(raw map[string]interface{}) (string, bool) {
	if msg, ok := errorText(raw["error"]); ok {
		return msg, true
	}
	if resp, _ := raw["tool_response"].(map[string]interface{}); resp != nil {
		if msg, ok := errorText(resp["error"]); ok {
			return msg, true
		}
	}
	return "", false
}

func errorText(v interface{}) (string, bool) {
	switch e := v.(type) {
	case nil:
		return "", false
	case string:
		return e, e != ""
	case bool:
		return "error", e
	case map[string]interface{}:
		if msg, _ := e["message"].(string); msg != "" {
			return msg, true
		}
		return fmt.Sprint(e), len(e) > 0
	default:
		return fmt.Sprint(e), true
	}
}

func resolveLocale(raw map[string]interface{}, s *settings.Compiled) string {
	if locale, _ := raw["locale"].(string); locale != "" {
		return locale
	}
	if s != nil && s.Settings.UILanguage != "" {
		return s.Settings.UILanguage
	}
	return "en"
}

func sessionKey(raw map[string]interface{}, scope domain.ScopeKey) string {
	if id, _ := raw["session_id"].(string); id != "" {
		return id
	}
	return scope.TerminalSessionID
}

func optionalString(raw map[string]interface{}, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: key, Reason: "must be a string"}
	}
	return strings.TrimSpace(s), nil
}

func stringish(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%v", x)
	default:
		return ""
	}
}

func orDefault(s string) string {
	if s == "" {
		return DefaultScopeValue
	}
	return s
}
