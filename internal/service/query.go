package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/statemachine"
)

const (
	defaultEventLimit    = 100
	maxEventLimit        = 1000
	defaultRecentEvents  = 50
	maxContextNeighbours = 200
)

// resolveScopes expands an empty scope list to the active sessions. none is
// true when there is nothing to show.
func (s *Service) resolveScopes(ctx context.Context, scopes []domain.ScopeKey) (resolved []domain.ScopeKey, none bool, err error) {
	if len(scopes) > 0 {
		return scopes, false, nil
	}
	sessions, err := s.store.ListSessions(ctx, true)
	if err != nil {
		return nil, false, err
	}
	if len(sessions) == 0 {
		return nil, true, nil
	}
	for _, sess := range sessions {
		resolved = append(resolved, sess.Scope())
	}
	return resolved, false, nil
}

// ListAgents lists agents in scopes, or in all active scopes.
func (s *Service) ListAgents(ctx context.Context, scopes []domain.ScopeKey) ([]domain.AgentState, error) {
	resolved, none, err := s.resolveScopes(ctx, scopes)
	if err != nil {
		return nil, fmt.Errorf("resolve scopes: %w", err)
	}
	if none {
		return []domain.AgentState{}, nil
	}
	return s.store.ListAgents(ctx, resolved)
}

// GetAgent returns one agent or ErrNotFound.
func (s *Service) GetAgent(ctx context.Context, agentID string) (*domain.AgentState, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrNotFound
	}
	return agent, nil
}

// ListSessions lists sessions matching scopes, or the active ones.
func (s *Service) ListSessions(ctx context.Context, scopes []domain.ScopeKey) ([]domain.Session, error) {
	sessions, err := s.store.ListSessions(ctx, len(scopes) == 0)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return sessions, nil
	}
	out := []domain.Session{}
	for _, sess := range sessions {
		for _, scope := range scopes {
			if scope.Matches(sess.Scope()) {
				out = append(out, sess)
				break
			}
		}
	}
	return out, nil
}

// ListEvents queries the event log. Without scopes it covers all active
// scopes.
func (s *Service) ListEvents(ctx context.Context, query domain.EventQuery) ([]domain.NormalizedEvent, error) {
	resolved, none, err := s.resolveScopes(ctx, query.Scopes)
	if err != nil {
		return nil, fmt.Errorf("resolve scopes: %w", err)
	}
	if none {
		return []domain.NormalizedEvent{}, nil
	}
	query.Scopes = resolved
	if query.Limit <= 0 {
		query.Limit = defaultEventLimit
	}
	if query.Limit > maxEventLimit {
		query.Limit = maxEventLimit
	}
	return s.store.ListEvents(ctx, query)
}

// Snapshot builds the full state for viewers of scopes.
func (s *Service) Snapshot(ctx context.Context, scopes []domain.ScopeKey) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		Agents:       []domain.AgentState{},
		Tasks:        []domain.Task{},
		RecentEvents: []domain.NormalizedEvent{},
		Settings:     s.settings.Current().Settings,
	}

	var err error
	if snap.Sessions, err = s.ListSessions(ctx, scopes); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	resolved, none, err := s.resolveScopes(ctx, scopes)
	if err != nil {
		return nil, fmt.Errorf("resolve scopes: %w", err)
	}
	if none {
		return snap, nil
	}

	if snap.Agents, err = s.store.ListAgents(ctx, resolved); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	if snap.Tasks, err = s.store.ListTasks(ctx, resolved); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	limit := defaultRecentEvents
	if s.config != nil && s.config.SnapshotRecentEvents > 0 {
		limit = s.config.SnapshotRecentEvents
	}
	if snap.RecentEvents, err = s.store.ListEvents(ctx, domain.EventQuery{Scopes: resolved, Limit: limit, Latest: true}); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return snap, nil
}

// EventContext returns the events around eventID and the status its agent
// had right after it, replayed from the agent's history.
func (s *Service) EventContext(ctx context.Context, eventID string, before, after int) (*domain.EventContext, error) {
	pivot, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if pivot == nil {
		return nil, ErrNotFound
	}

	before = clamp(before, 0, maxContextNeighbours)
	after = clamp(after, 0, maxContextNeighbours)
	prev, next, err := s.store.ListEventsAround(ctx, eventID, before, after)
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListAgentEventsUntil(ctx, pivot.AgentID, eventID)
	if err != nil {
		return nil, err
	}

	return &domain.EventContext{
		Event:          *pivot,
		Before:         prev,
		After:          next,
		StatusAtEvent:  statemachine.Replay(history, &s.settings.Current().Machine),
		ReplayedEvents: len(history),
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
