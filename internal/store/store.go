package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of the durable store. Records are
// written whole as JSONB documents with a few indexed columns broken out for
// query pushdown; the system needs per-record atomicity only, so every write
// is a single upsert.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// schemaDDL creates the tables the store writes to. Retention expiry of
// events is owned by an external policy reading expires_at.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    data       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
    id         TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    status     TEXT NOT NULL,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_session_idx ON tasks (session_id, created_at);
CREATE TABLE IF NOT EXISTS events (
    id          TEXT PRIMARY KEY,
    source_addr TEXT NOT NULL,
    ts          TIMESTAMPTZ NOT NULL,
    data        JSONB NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS events_source_ts_idx ON events (source_addr, ts);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("%w: ensuring schema: %v", schemas.ErrPersistence, err)
	}
	return nil
}

// -- SessionStore --

const sqlUpsertSession = `
    INSERT INTO sessions (id, status, data, updated_at)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (id) DO UPDATE SET
        status = EXCLUDED.status,
        data = EXCLUDED.data,
        updated_at = EXCLUDED.updated_at;
`

// SaveSession upserts the full session record. Called after every task
// transition so a crash mid-session does not lose progress.
func (s *Store) SaveSession(ctx context.Context, session *schemas.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: marshaling session %s: %v", schemas.ErrPersistence, session.ID, err)
	}
	if _, err := s.pool.Exec(ctx, sqlUpsertSession, session.ID, string(session.Status), data, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: saving session %s: %v", schemas.ErrPersistence, session.ID, err)
	}
	return nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*schemas.Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM sessions WHERE id = $1;`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %q not found", id)
		}
		return nil, fmt.Errorf("%w: loading session %s: %v", schemas.ErrPersistence, id, err)
	}

	var session schemas.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: decoding session %s: %v", schemas.ErrPersistence, id, err)
	}
	return &session, nil
}

// -- TaskStore --

const sqlUpsertTask = `
    INSERT INTO tasks (id, session_id, status, data, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO UPDATE SET
        status = EXCLUDED.status,
        data = EXCLUDED.data,
        updated_at = EXCLUDED.updated_at;
`

// SaveTask upserts one task record.
func (s *Store) SaveTask(ctx context.Context, task *schemas.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("%w: marshaling task %s: %v", schemas.ErrPersistence, task.ID, err)
	}
	if _, err := s.pool.Exec(ctx, sqlUpsertTask,
		task.ID, task.SessionID, string(task.Status), data, task.CreatedAt.UTC(), time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: saving task %s: %v", schemas.ErrPersistence, task.ID, err)
	}
	return nil
}

// TasksBySession returns a session's tasks in creation order.
func (s *Store) TasksBySession(ctx context.Context, sessionID string) ([]schemas.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM tasks WHERE session_id = $1 ORDER BY created_at ASC;`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying tasks for session %s: %v", schemas.ErrPersistence, sessionID, err)
	}
	defer rows.Close()

	var tasks []schemas.Task
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: scanning task row: %v", schemas.ErrPersistence, err)
		}
		var task schemas.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("%w: decoding task row: %v", schemas.ErrPersistence, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating task rows: %v", schemas.ErrPersistence, err)
	}
	return tasks, nil
}

// -- EventStore --

const sqlInsertEvent = `
    INSERT INTO events (id, source_addr, ts, data, expires_at)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (id) DO NOTHING;
`

// SaveEvent persists an enriched, scored event. Events are immutable after
// this write, so conflicts are ignored rather than overwritten.
func (s *Store) SaveEvent(ctx context.Context, event *schemas.SecurityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshaling event %s: %v", schemas.ErrPersistence, event.ID, err)
	}
	if _, err := s.pool.Exec(ctx, sqlInsertEvent,
		event.ID, event.SourceAddr, event.Timestamp.UTC(), data, event.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("%w: saving event %s: %v", schemas.ErrPersistence, event.ID, err)
	}
	return nil
}

// EventsBySourceAddr returns events sharing a source address inside [from, to],
// in timestamp order. This backs the correlator's window query.
func (s *Store) EventsBySourceAddr(ctx context.Context, sourceAddr string, from, to time.Time) ([]schemas.SecurityEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM events WHERE source_addr = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts ASC;`,
		sourceAddr, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: querying events for %s: %v", schemas.ErrPersistence, sourceAddr, err)
	}
	defer rows.Close()

	var events []schemas.SecurityEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: scanning event row: %v", schemas.ErrPersistence, err)
		}
		var event schemas.SecurityEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("%w: decoding event row: %v", schemas.ErrPersistence, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating event rows: %v", schemas.ErrPersistence, err)
	}
	return events, nil
}
