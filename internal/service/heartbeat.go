package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/protocol"
	"github.com/xiaot623/hookwatch/internal/settings"
	"github.com/xiaot623/hookwatch/internal/statemachine"
)

// Heartbeat is the handle of a running heartbeat ticker.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop stops the ticker and waits for an in-flight tick to finish.
func (h *Heartbeat) Stop() {
	h.cancel()
	<-h.done
}

// StartHeartbeat starts the ticker. Ticks run one at a time; the interval is
// re-read from the current settings after every tick.
func (s *Service) StartHeartbeat(ctx context.Context) *Heartbeat {
	ctx, cancel := context.WithCancel(ctx)
	h := &Heartbeat{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		timer := time.NewTimer(s.settings.Current().HeartbeatInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				s.tick(ctx)
				timer.Reset(s.settings.Current().HeartbeatInterval)
			}
		}
	}()
	return h
}

// tick marks stale sessions, applies timer transitions and emits one
// heartbeat per active scope.
func (s *Service) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg := s.settings.Current()
	now := s.now()

	if cfg.StaleAfter > 0 {
		n, err := s.store.MarkStaleSessions(tickCtx, now.Add(-cfg.StaleAfter))
		if err != nil {
			slog.Warn("Failed to mark stale sessions", "error", err)
		} else if n > 0 {
			slog.Info("Marked sessions inactive", "count", n)
		}
	}

	agents, err := s.store.ListAgents(tickCtx, nil)
	if err != nil {
		slog.Warn("Heartbeat failed to list agents", "error", err)
		return
	}
	for _, agent := range agents {
		if err := s.applyTimer(tickCtx, agent.AgentID, now, cfg); err != nil {
			slog.Warn("Timer transition failed", "agent_id", agent.AgentID, "error", err)
		}
	}

	sessions, err := s.store.ListSessions(tickCtx, true)
	if err != nil {
		slog.Warn("Heartbeat failed to list sessions", "error", err)
		return
	}
	counts := make(map[domain.ScopeKey]int)
	for _, agent := range agents {
		counts[agent.Scope()]++
	}
	for _, sess := range sessions {
		scope := sess.Scope()
		s.broadcast(protocol.TypeHeartbeat, domain.HeartbeatData{
			Scope:      scope.String(),
			Ts:         now.UnixMilli(),
			AgentCount: counts[scope],
		}, &scope)
	}
}

// applyTimer re-reads the agent under its lock and applies a due timer
// transition.
func (s *Service) applyTimer(ctx context.Context, agentID string, now time.Time, cfg *settings.Compiled) error {
	unlock := s.locks.Lock(agentID)
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil || agent == nil {
		unlock()
		return err
	}

	old := agent.Status
	next, ok := statemachine.CheckTimerTransitions(old, agent.Since, now, &cfg.Machine)
	if !ok {
		unlock()
		return nil
	}
	agent.Status = next
	agent.Since = now
	agent.Position = s.positionFor(agent, old, next, cfg)
	agent.UpdatedAt = now
	err = s.store.UpsertAgent(ctx, agent)
	unlock()
	if err != nil {
		return err
	}

	slog.Info("Timer transition", "agent_id", agentID, "from", old, "to", next)
	scope := agent.Scope()
	s.broadcast(protocol.TypeStateUpdate, &domain.StateUpdateData{
		AgentID:   agent.AgentID,
		OldStatus: old,
		NewStatus: next,
		Position:  agent.Position,
		Context:   agent.Context,
		Thinking:  agent.ThinkingText,
		Ts:        now.UnixMilli(),
	}, &scope)
	return nil
}
