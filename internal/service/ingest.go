package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/normalizer"
	"github.com/xiaot623/hookwatch/internal/protocol"
	"github.com/xiaot623/hookwatch/internal/settings"
	"github.com/xiaot623/hookwatch/internal/statemachine"
)

const defaultTranslateTimeout = 10 * time.Second

// Ingest normalizes a raw hook payload and processes it. Normalization
// failures are returned as *normalizer.ValidationError.
func (s *Service) Ingest(ctx context.Context, raw map[string]interface{}) (*domain.IngestResponse, error) {
	cfg := s.settings.Current()
	ev, err := normalizer.Normalize(raw, cfg, s.now())
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, ev, cfg)
}

// Process runs a normalized event through the pipeline. Each fingerprint
// affects state at most once; a repeat returns Deduplicated without side
// effects. Failures after the event is persisted are not rolled back.
func (s *Service) Process(ctx context.Context, ev *domain.NormalizedEvent, cfg *settings.Compiled) (*domain.IngestResponse, error) {
	existing, err := s.store.GetEvent(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("dedup check: %w", err)
	}
	if existing != nil {
		slog.Debug("Duplicate event", "event_id", ev.ID)
		return &domain.IngestResponse{OK: true, EventID: ev.ID, Deduplicated: true}, nil
	}

	inserted, err := s.store.CreateEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("persist event: %w", err)
	}
	if !inserted {
		slog.Debug("Duplicate event lost insert race", "event_id", ev.ID)
		return &domain.IngestResponse{OK: true, EventID: ev.ID, Deduplicated: true}, nil
	}
	s.export(ev)

	if err := s.store.TouchSession(ctx, ev.Scope(), s.now()); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}

	// Translation happens before the agent lock is taken.
	thinking := s.translateThinking(ctx, ev, cfg)

	// Broadcasts are queued under the agent lock so viewers see updates in
	// write order. Broadcast never blocks.
	unlock := s.locks.Lock(ev.AgentID)
	defer unlock()

	update, err := s.applyEvent(ctx, ev, thinking, cfg)
	if err != nil {
		slog.Error("Failed to apply event", "event_id", ev.ID, "agent_id", ev.AgentID, "error", err)
		return nil, fmt.Errorf("apply event: %w", err)
	}

	scope := ev.Scope()
	if ev.TaskID != "" {
		task, err := s.trackTask(ctx, ev)
		if err != nil {
			slog.Error("Failed to track task", "event_id", ev.ID, "task_id", ev.TaskID, "error", err)
			return nil, fmt.Errorf("track task: %w", err)
		}
		s.broadcast(protocol.TypeTaskUpdate, domain.TaskUpdateData{Task: task, EventID: ev.ID}, &scope)
	}

	s.broadcast(protocol.TypeEvent, ev, &scope)
	s.broadcast(protocol.TypeStateUpdate, update, &scope)

	return &domain.IngestResponse{OK: true, EventID: ev.ID}, nil
}

// applyEvent computes and persists the agent's next state. The caller holds
// the agent's lock.
func (s *Service) applyEvent(ctx context.Context, ev *domain.NormalizedEvent, thinking *string, cfg *settings.Compiled) (*domain.StateUpdateData, error) {
	now := s.now()

	agent, err := s.store.GetAgent(ctx, ev.AgentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		if agent, err = s.newAgent(ctx, ev, now); err != nil {
			return nil, err
		}
		slog.Info("Registered agent", "agent_id", agent.AgentID, "role", agent.Role, "seat", agent.HomePosition)
	}

	old := agent.Status
	next := statemachine.NextStatus(old, ev, agent.Since, &cfg.Machine)
	if next != old {
		agent.Status = next
		agent.Since = now
		agent.Position = s.positionFor(agent, old, next, cfg)
	}

	agent.WorkspaceID = ev.WorkspaceID
	agent.TerminalSessionID = ev.TerminalSessionID
	agent.RunID = ev.RunID
	agent.Context = domain.AgentContext{TaskID: ev.TaskID, PeerAgentID: ev.TargetAgentID}
	if thinking != nil {
		agent.ThinkingText = thinking
	}
	agent.LastEventID = ev.ID
	agent.UpdatedAt = now

	if err := s.store.UpsertAgent(ctx, agent); err != nil {
		return nil, err
	}

	eventID := ev.ID
	return &domain.StateUpdateData{
		AgentID:            agent.AgentID,
		OldStatus:          old,
		NewStatus:          agent.Status,
		Position:           agent.Position,
		Context:            agent.Context,
		Thinking:           agent.ThinkingText,
		Ts:                 now.UnixMilli(),
		TriggeredByEventID: &eventID,
	}, nil
}

// newAgent registers an unseen agent with its default state. The leader is
// the workspace manager; every agent gets the next free seat. Counting and
// inserting happen under the workspace's seat lock.
func (s *Service) newAgent(ctx context.Context, ev *domain.NormalizedEvent, now time.Time) (*domain.AgentState, error) {
	unlock := s.locks.Lock("seats:" + ev.WorkspaceID)
	defer unlock()

	count, err := s.store.CountAgents(ctx, ev.WorkspaceID)
	if err != nil {
		return nil, err
	}
	name := normalizer.ShortName(ev.AgentID)
	role := domain.AgentRoleWorker
	if name == normalizer.LeaderName {
		role = domain.AgentRoleManager
	}
	seat := "seat-" + strconv.Itoa(count+1)
	agent := &domain.AgentState{
		AgentID:           ev.AgentID,
		WorkspaceID:       ev.WorkspaceID,
		TerminalSessionID: ev.TerminalSessionID,
		RunID:             ev.RunID,
		Name:              name,
		Role:              role,
		Status:            domain.AgentStatusIdle,
		Since:             now,
		Position:          seat,
		HomePosition:      seat,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.UpsertAgent(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// positionFor resolves the presentation position after a status change.
func (s *Service) positionFor(agent *domain.AgentState, old, next domain.AgentStatus, cfg *settings.Compiled) string {
	switch {
	case next == domain.AgentStatusCompleted && old != domain.AgentStatusCompleted:
		return string(statemachine.ResolvePlacement(cfg.Placement, s.rand()))
	case next == domain.AgentStatusWorking, next == domain.AgentStatusReturning, next == domain.AgentStatusIdle:
		return agent.HomePosition
	case next.OffDuty():
		return string(next)
	default:
		return agent.Position
	}
}

// trackTask upserts the task the event refers to.
func (s *Service) trackTask(ctx context.Context, ev *domain.NormalizedEvent) (*domain.Task, error) {
	unlock := s.locks.Lock("task:" + ev.TaskID)
	defer unlock()

	now := s.now()
	task, err := s.store.GetTask(ctx, ev.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		task = &domain.Task{TaskID: ev.TaskID, Status: domain.TaskStatusPending, CreatedAt: now}
	}
	if status, ok := domain.TaskStatusFor(ev.Type); ok {
		task.Status = status
	}
	task.WorkspaceID = ev.WorkspaceID
	task.TerminalSessionID = ev.TerminalSessionID
	task.RunID = ev.RunID
	task.AgentID = ev.AgentID
	task.LastEventID = ev.ID
	task.UpdatedAt = now

	if err := s.store.UpsertTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// translateThinking returns the thinking text to store. On translation
// failure the original text is kept and viewers get a runtime_error.
func (s *Service) translateThinking(ctx context.Context, ev *domain.NormalizedEvent, cfg *settings.Compiled) *string {
	thinking := ev.Thinking()
	if thinking == nil || s.translator == nil || !cfg.Settings.TranslationEnabled {
		return thinking
	}
	target := cfg.TargetLanguage()
	if target == "" {
		return thinking
	}

	timeout := defaultTranslateTimeout
	if s.config != nil && s.config.TranslateTimeout > 0 {
		timeout = s.config.TranslateTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	translated, err := s.translator.Translate(tctx, *thinking, target)
	if err == nil && translated == "" {
		err = fmt.Errorf("translation returned empty content")
	}
	if err != nil {
		slog.Warn("Translation failed", "event_id", ev.ID, "agent_id", ev.AgentID, "error", err)
		scope := ev.Scope()
		s.broadcast(protocol.TypeRuntimeError, domain.RuntimeErrorData{
			ErrorID: uuid.New().String(),
			Source:  "translation",
			Message: err.Error(),
			EventID: ev.ID,
			AgentID: ev.AgentID,
			Ts:      s.now().UnixMilli(),
		}, &scope)
		return thinking
	}
	return &translated
}

func (s *Service) export(ev *domain.NormalizedEvent) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.Export(context.Background(), ev); err != nil {
		slog.Warn("Event export failed", "event_id", ev.ID, "error", err)
	}
}

func (s *Service) broadcast(msgType string, data interface{}, scope *domain.ScopeKey) {
	if s.broadcaster == nil {
		return
	}
	msg := protocol.NewMessage(msgType, data, s.now().UnixMilli())
	if scope != nil {
		msg.Scope = scope.String()
	}
	s.broadcaster.Broadcast(msg, scope)
}
