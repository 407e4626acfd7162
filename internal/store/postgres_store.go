package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	stage INTEGER NOT NULL,
	state JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS logs (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	ip_address TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS logs_timestamp_idx ON logs (timestamp DESC);
`

// PostgresStore persists session snapshots and the activity log.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, state domain.SessionState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, stage, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		state.ID,
		int(state.Stage),
		stateJSON,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrSessionExists, state.ID)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.SessionState, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = $1`, id)

	var stateJSON []byte
	if err := row.Scan(&stateJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionState{}, false, nil
		}
		return domain.SessionState{}, false, fmt.Errorf("query session: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("unmarshal session: %w", err)
	}
	return state, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, state domain.SessionState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
		 SET stage = $1, state = $2, updated_at = $3
		 WHERE id = $4`,
		int(state.Stage),
		stateJSON,
		state.UpdatedAt,
		state.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", state.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, entry domain.ActivityLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO logs (session_id, action, filename, ip_address)
		 VALUES ($1, $2, $3, $4)`,
		entry.SessionID,
		entry.Action,
		entry.Filename,
		entry.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, action, filename, ip_address, timestamp
		 FROM logs
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $1`,
		activityLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityLog
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Action,
			&entry.Filename,
			&entry.IPAddress,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
