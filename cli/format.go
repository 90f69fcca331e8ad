package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/protocol"
)

type frame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Scope   string          `json:"scope"`
	Message string          `json:"message"`
	Ts      int64           `json:"ts"`
}

var (
	dim    = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// formatFrame renders one server frame as a single line.
func formatFrame(data []byte) string {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return red("unreadable frame: ") + string(data)
	}
	prefix := dim(clock(f.Ts)) + " " + bold(fmt.Sprintf("%-13s", f.Type))

	switch f.Type {
	case protocol.TypeSnapshot:
		var snap domain.Snapshot
		_ = json.Unmarshal(f.Data, &snap)
		return fmt.Sprintf("%s %d agents, %d tasks, %d sessions, %d recent events",
			prefix, len(snap.Agents), len(snap.Tasks), len(snap.Sessions), len(snap.RecentEvents))

	case protocol.TypeEvent:
		var ev domain.NormalizedEvent
		_ = json.Unmarshal(f.Data, &ev)
		line := fmt.Sprintf("%s %s %s", prefix, cyan(ev.AgentID), severityColor(ev.Severity)(string(ev.Type)))
		if ev.TaskID != "" {
			line += dim(" task=" + ev.TaskID)
		}
		return line

	case protocol.TypeStateUpdate:
		var su domain.StateUpdateData
		_ = json.Unmarshal(f.Data, &su)
		line := fmt.Sprintf("%s %s %s -> %s", prefix, cyan(su.AgentID), su.OldStatus, statusColor(su.NewStatus)(string(su.NewStatus)))
		if su.Position != "" {
			line += dim(" @" + su.Position)
		}
		if su.TriggeredByEventID == nil {
			line += dim(" (timer)")
		}
		return line

	case protocol.TypeTaskUpdate:
		var tu domain.TaskUpdateData
		_ = json.Unmarshal(f.Data, &tu)
		if tu.Task == nil {
			return prefix
		}
		return fmt.Sprintf("%s %s %s by %s", prefix, tu.Task.TaskID, tu.Task.Status, cyan(tu.Task.AgentID))

	case protocol.TypeHeartbeat:
		var hb domain.HeartbeatData
		_ = json.Unmarshal(f.Data, &hb)
		return fmt.Sprintf("%s %s %s", prefix, hb.Scope, dim(fmt.Sprintf("%d agents", hb.AgentCount)))

	case protocol.TypeRuntimeError:
		var re domain.RuntimeErrorData
		_ = json.Unmarshal(f.Data, &re)
		return fmt.Sprintf("%s %s %s", prefix, yellow(re.Source), re.Message)

	case protocol.TypeError:
		return prefix + " " + red(f.Message)

	default:
		if f.Message != "" {
			return prefix + " " + f.Message
		}
		if f.Scope != "" {
			return prefix + " " + f.Scope
		}
		return prefix
	}
}

func formatIngest(resp *domain.IngestResponse) string {
	if resp.Deduplicated {
		return yellow("duplicate ") + resp.EventID
	}
	return green("accepted ") + resp.EventID
}

func clock(ts int64) string {
	if ts <= 0 {
		return "--:--:--"
	}
	return time.UnixMilli(ts).Format("15:04:05")
}

func severityColor(s domain.Severity) func(a ...interface{}) string {
	switch s {
	case domain.SeverityError:
		return red
	case domain.SeverityWarn:
		return yellow
	default:
		return fmt.Sprint
	}
}

func statusColor(s domain.AgentStatus) func(a ...interface{}) string {
	switch s {
	case domain.AgentStatusFailed:
		return red
	case domain.AgentStatusPendingInput, domain.AgentStatusHandoff:
		return yellow
	case domain.AgentStatusCompleted:
		return green
	default:
		return fmt.Sprint
	}
}
