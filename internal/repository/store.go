// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// Store defines the interface for data persistence.
// Lookups return nil, nil when the row does not exist.
type Store interface {
	// Event log operations
	CreateEvent(ctx context.Context, event *domain.NormalizedEvent) (bool, error)
	GetEvent(ctx context.Context, eventID string) (*domain.NormalizedEvent, error)
	ListEvents(ctx context.Context, query domain.EventQuery) ([]domain.NormalizedEvent, error)
	ListEventsAround(ctx context.Context, eventID string, before, after int) ([]domain.NormalizedEvent, []domain.NormalizedEvent, error)
	ListAgentEventsUntil(ctx context.Context, agentID, eventID string) ([]domain.NormalizedEvent, error)

	// Agent operations
	GetAgent(ctx context.Context, agentID string) (*domain.AgentState, error)
	UpsertAgent(ctx context.Context, agent *domain.AgentState) error
	ListAgents(ctx context.Context, scopes []domain.ScopeKey) ([]domain.AgentState, error)
	CountAgents(ctx context.Context, workspaceID string) (int, error)

	// Session operations
	TouchSession(ctx context.Context, scope domain.ScopeKey, at time.Time) error
	ListSessions(ctx context.Context, activeOnly bool) ([]domain.Session, error)
	MarkStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)

	// Task operations
	UpsertTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, scopes []domain.ScopeKey) ([]domain.Task, error)

	// Lifecycle
	Close() error
}
