package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/hookwatch/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations. All timestamps are unix milliseconds.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			terminal_session_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			task_id TEXT,
			target_agent_id TEXT,
			severity TEXT NOT NULL,
			locale TEXT,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_scope ON events(workspace_id, terminal_session_id, run_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts, seq)`,
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			terminal_session_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'idle',
			since INTEGER NOT NULL,
			position TEXT,
			home_position TEXT,
			context TEXT,
			thinking_text TEXT,
			last_event_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_workspace ON agents(workspace_id)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			workspace_id TEXT NOT NULL,
			terminal_session_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			last_heartbeat_at INTEGER NOT NULL,
			PRIMARY KEY (workspace_id, terminal_session_id, run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			terminal_session_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			status TEXT NOT NULL,
			last_event_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scopeFilter builds an OR of scope matches. Wildcard or empty fields are
// not constrained. An empty list matches everything.
func scopeFilter(scopes []domain.ScopeKey) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	for _, scope := range scopes {
		var parts []string
		for _, f := range []struct{ col, val string }{
			{"workspace_id", scope.WorkspaceID},
			{"terminal_session_id", scope.TerminalSessionID},
			{"run_id", scope.RunID},
		} {
			if f.val == "" || f.val == domain.ScopeWildcard {
				continue
			}
			parts = append(parts, f.col+" = ?")
			args = append(args, f.val)
		}
		if len(parts) == 0 {
			return "", nil
		}
		clauses = append(clauses, "("+strings.Join(parts, " AND ")+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Event operations

const eventColumns = `event_id, ts, type, workspace_id, terminal_session_id, run_id, agent_id, task_id, target_agent_id, severity, locale, payload`

// CreateEvent appends an event. It reports false when an event with the same
// id already exists.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.NormalizedEvent) (bool, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode payload: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Ts, string(event.Type), event.WorkspaceID, event.TerminalSessionID, event.RunID,
		event.AgentID, nullString(event.TaskID), nullString(event.TargetAgentID), string(event.Severity),
		nullString(event.Locale), string(payload))
	if err != nil {
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanEvent(row rowScanner) (*domain.NormalizedEvent, error) {
	var ev domain.NormalizedEvent
	var eventType, severity string
	var taskID, targetID, locale, payload sql.NullString
	if err := row.Scan(&ev.ID, &ev.Ts, &eventType, &ev.WorkspaceID, &ev.TerminalSessionID, &ev.RunID,
		&ev.AgentID, &taskID, &targetID, &severity, &locale, &payload); err != nil {
		return nil, err
	}
	ev.Type = domain.EventType(eventType)
	ev.Severity = domain.Severity(severity)
	ev.TaskID = taskID.String
	ev.TargetAgentID = targetID.String
	ev.Locale = locale.String
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
	}
	if ev.Payload == nil {
		ev.Payload = map[string]interface{}{}
	}
	return &ev, nil
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...interface{}) ([]domain.NormalizedEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.NormalizedEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func reverseEvents(events []domain.NormalizedEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}

// GetEvent retrieves an event by id.
func (s *SQLiteStore) GetEvent(ctx context.Context, eventID string) (*domain.NormalizedEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id = ?`, eventID)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

// ListEvents returns events matching query in ascending time order.
func (s *SQLiteStore) ListEvents(ctx context.Context, query domain.EventQuery) ([]domain.NormalizedEvent, error) {
	var where []string
	var args []interface{}

	if clause, scopeArgs := scopeFilter(query.Scopes); clause != "" {
		where = append(where, clause)
		args = append(args, scopeArgs...)
	}
	if query.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, query.AgentID)
	}
	if query.SinceTs > 0 {
		where = append(where, "ts >= ?")
		args = append(args, query.SinceTs)
	}
	if query.UntilTs > 0 {
		where = append(where, "ts <= ?")
		args = append(args, query.UntilTs)
	}
	if len(query.Types) > 0 {
		placeholders := make([]string, len(query.Types))
		for i, t := range query.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		where = append(where, "type IN ("+strings.Join(placeholders, ",")+")")
	}

	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if query.Latest {
		q += " ORDER BY ts DESC, seq DESC"
	} else {
		q += " ORDER BY ts ASC, seq ASC"
	}
	if query.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, query.Limit)
	}

	events, err := s.queryEvents(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if query.Latest {
		reverseEvents(events)
	}
	return events, nil
}

func (s *SQLiteStore) eventPosition(ctx context.Context, eventID string) (ts, seq int64, scope domain.ScopeKey, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT ts, seq, workspace_id, terminal_session_id, run_id FROM events WHERE event_id = ?`, eventID,
	).Scan(&ts, &seq, &scope.WorkspaceID, &scope.TerminalSessionID, &scope.RunID)
	if err == sql.ErrNoRows {
		return 0, 0, scope, false, nil
	}
	if err != nil {
		return 0, 0, scope, false, err
	}
	return ts, seq, scope, true, nil
}

// ListEventsAround returns up to before events preceding and after events
// following the pivot inside the pivot's scope, both in ascending order.
func (s *SQLiteStore) ListEventsAround(ctx context.Context, eventID string, before, after int) ([]domain.NormalizedEvent, []domain.NormalizedEvent, error) {
	ts, seq, scope, ok, err := s.eventPosition(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate event: %w", err)
	}
	if !ok {
		return nil, nil, nil
	}

	const scoped = `workspace_id = ? AND terminal_session_id = ? AND run_id = ?`
	prev := []domain.NormalizedEvent{}
	if before > 0 {
		prev, err = s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events
			WHERE `+scoped+` AND (ts < ? OR (ts = ? AND seq < ?))
			ORDER BY ts DESC, seq DESC LIMIT ?`,
			scope.WorkspaceID, scope.TerminalSessionID, scope.RunID, ts, ts, seq, before)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list preceding events: %w", err)
		}
		reverseEvents(prev)
	}

	next := []domain.NormalizedEvent{}
	if after > 0 {
		next, err = s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events
			WHERE `+scoped+` AND (ts > ? OR (ts = ? AND seq > ?))
			ORDER BY ts ASC, seq ASC LIMIT ?`,
			scope.WorkspaceID, scope.TerminalSessionID, scope.RunID, ts, ts, seq, after)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list following events: %w", err)
		}
	}
	return prev, next, nil
}

// ListAgentEventsUntil returns the agent's events up to and including the
// pivot event, in ascending order.
func (s *SQLiteStore) ListAgentEventsUntil(ctx context.Context, agentID, eventID string) ([]domain.NormalizedEvent, error) {
	ts, seq, _, ok, err := s.eventPosition(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to locate event: %w", err)
	}
	if !ok {
		return nil, nil
	}
	events, err := s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events
		WHERE agent_id = ? AND (ts < ? OR (ts = ? AND seq <= ?))
		ORDER BY ts ASC, seq ASC`, agentID, ts, ts, seq)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent events: %w", err)
	}
	return events, nil
}

// Agent operations

const agentColumns = `agent_id, workspace_id, terminal_session_id, run_id, name, role, status, since, position, home_position, context, thinking_text, last_event_id, created_at, updated_at`

// UpsertAgent inserts or replaces an agent row.
func (s *SQLiteStore) UpsertAgent(ctx context.Context, agent *domain.AgentState) error {
	agentCtx, err := json.Marshal(agent.Context)
	if err != nil {
		return fmt.Errorf("failed to encode agent context: %w", err)
	}
	var thinking sql.NullString
	if agent.ThinkingText != nil {
		thinking = sql.NullString{String: *agent.ThinkingText, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO agents (`+agentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, agent.AgentID, agent.WorkspaceID, agent.TerminalSessionID, agent.RunID, agent.Name, string(agent.Role),
		string(agent.Status), toMillis(agent.Since), nullString(agent.Position), nullString(agent.HomePosition),
		string(agentCtx), thinking, nullString(agent.LastEventID), toMillis(agent.CreatedAt), toMillis(agent.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert agent: %w", err)
	}
	return nil
}

func scanAgent(row rowScanner) (*domain.AgentState, error) {
	var a domain.AgentState
	var role, status string
	var since, createdAt, updatedAt int64
	var position, home, agentCtx, thinking, lastEvent sql.NullString
	if err := row.Scan(&a.AgentID, &a.WorkspaceID, &a.TerminalSessionID, &a.RunID, &a.Name, &role, &status,
		&since, &position, &home, &agentCtx, &thinking, &lastEvent, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Role = domain.AgentRole(role)
	a.Status = domain.AgentStatus(status)
	a.Since = fromMillis(since)
	a.Position = position.String
	a.HomePosition = home.String
	a.LastEventID = lastEvent.String
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	if thinking.Valid {
		t := thinking.String
		a.ThinkingText = &t
	}
	if agentCtx.Valid && agentCtx.String != "" {
		if err := json.Unmarshal([]byte(agentCtx.String), &a.Context); err != nil {
			return nil, fmt.Errorf("failed to decode agent context: %w", err)
		}
	}
	return &a, nil
}

// GetAgent retrieves an agent by id.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*domain.AgentState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE agent_id = ?`, agentID)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// ListAgents lists agents in the given scopes, or all agents.
func (s *SQLiteStore) ListAgents(ctx context.Context, scopes []domain.ScopeKey) ([]domain.AgentState, error) {
	q := `SELECT ` + agentColumns + ` FROM agents`
	clause, args := scopeFilter(scopes)
	if clause != "" {
		q += " WHERE " + clause
	}
	q += " ORDER BY workspace_id, agent_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := []domain.AgentState{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// CountAgents counts the agents registered in a workspace.
func (s *SQLiteStore) CountAgents(ctx context.Context, workspaceID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE workspace_id = ?`, workspaceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count agents: %w", err)
	}
	return n, nil
}

// Session operations

// TouchSession records a heartbeat for scope and marks it active.
func (s *SQLiteStore) TouchSession(ctx context.Context, scope domain.ScopeKey, at time.Time) error {
	ms := toMillis(at)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (workspace_id, terminal_session_id, run_id, status, started_at, last_heartbeat_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, terminal_session_id, run_id)
		DO UPDATE SET status = excluded.status, last_heartbeat_at = excluded.last_heartbeat_at
	`, scope.WorkspaceID, scope.TerminalSessionID, scope.RunID, string(domain.SessionStatusActive), ms, ms)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// ListSessions lists sessions, optionally only the active ones.
func (s *SQLiteStore) ListSessions(ctx context.Context, activeOnly bool) ([]domain.Session, error) {
	q := `SELECT workspace_id, terminal_session_id, run_id, status, started_at, last_heartbeat_at FROM sessions`
	var args []interface{}
	if activeOnly {
		q += " WHERE status = ?"
		args = append(args, string(domain.SessionStatusActive))
	}
	q += " ORDER BY last_heartbeat_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var sess domain.Session
		var status string
		var startedAt, heartbeatAt int64
		if err := rows.Scan(&sess.WorkspaceID, &sess.TerminalSessionID, &sess.RunID, &status, &startedAt, &heartbeatAt); err != nil {
			return nil, err
		}
		sess.Status = domain.SessionStatus(status)
		sess.StartedAt = fromMillis(startedAt)
		sess.LastHeartbeatAt = fromMillis(heartbeatAt)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// MarkStaleSessions marks active sessions whose last heartbeat is older than
// cutoff as inactive.
func (s *SQLiteStore) MarkStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?
		WHERE status = ? AND last_heartbeat_at < ?
	`, string(domain.SessionStatusInactive), string(domain.SessionStatusActive), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale sessions: %w", err)
	}
	return res.RowsAffected()
}

// Task operations

const taskColumns = `task_id, workspace_id, terminal_session_id, run_id, agent_id, status, last_event_id, created_at, updated_at`

// UpsertTask inserts a task or updates its owner, status and last event.
func (s *SQLiteStore) UpsertTask(ctx context.Context, task *domain.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			terminal_session_id = excluded.terminal_session_id,
			run_id = excluded.run_id,
			agent_id = excluded.agent_id,
			status = excluded.status,
			last_event_id = excluded.last_event_id,
			updated_at = excluded.updated_at
	`, task.TaskID, task.WorkspaceID, task.TerminalSessionID, task.RunID, task.AgentID, string(task.Status),
		nullString(task.LastEventID), toMillis(task.CreatedAt), toMillis(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var status string
	var lastEvent sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&t.TaskID, &t.WorkspaceID, &t.TerminalSessionID, &t.RunID, &t.AgentID, &status,
		&lastEvent, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	t.LastEventID = lastEvent.String
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return &t, nil
}

// GetTask retrieves a task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks lists tasks in the given scopes, or all tasks.
func (s *SQLiteStore) ListTasks(ctx context.Context, scopes []domain.ScopeKey) ([]domain.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks`
	clause, args := scopeFilter(scopes)
	if clause != "" {
		q += " WHERE " + clause
	}
	q += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
