package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates a new PostgreSQL simulation store, creating the
// schema if needed.
func NewPostgreSQLStore(pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	ctx := context.Background()

	schema := []string{
		`CREATE TABLE IF NOT EXISTS simulation_state (
			id TEXT PRIMARY KEY,
			sim_date DATE NOT NULL,
			last_checkpoint TIMESTAMPTZ,
			is_simulating BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			event_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			details JSONB,
			processed BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS system_checkpoints (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			state JSONB NOT NULL,
			checksum TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create simulation schema: %w", err)
		}
	}

	if _, err := pool.Exec(ctx,
		"CREATE INDEX IF NOT EXISTS idx_events_date ON scheduled_events(event_date, processed)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &PostgreSQLStore{pool: pool}, nil
}

func (s *PostgreSQLStore) State(ctx context.Context) (*State, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT sim_date, last_checkpoint, is_simulating
		FROM simulation_state WHERE id = $1
	`, stateRowID)

	var st State
	err := row.Scan(&st.CurrentDate, &st.LastCheckpoint, &st.Simulating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan simulation state: %w", err)
	}
	return &st, nil
}

func (s *PostgreSQLStore) SaveState(ctx context.Context, st *State) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO simulation_state (id, sim_date, last_checkpoint, is_simulating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			sim_date = EXCLUDED.sim_date,
			last_checkpoint = EXCLUDED.last_checkpoint,
			is_simulating = EXCLUDED.is_simulating
	`, stateRowID, st.CurrentDate, st.LastCheckpoint, st.Simulating)
	if err != nil {
		return fmt.Errorf("save simulation state: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) CreateEvent(ctx context.Context, e *Event) error {
	var details []byte
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_events (id, event_type, event_date, created_at, details, processed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, string(e.Type), e.Date, e.CreatedAt.UTC(), details, e.Processed)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) PendingEventsForDate(ctx context.Context, date time.Time) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, event_date, created_at, details, processed
		FROM scheduled_events
		WHERE event_date = $1 AND processed = FALSE
		ORDER BY created_at
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEventsPG(rows)
}

func (s *PostgreSQLStore) PendingEventsBetween(ctx context.Context, start, end time.Time) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, event_date, created_at, details, processed
		FROM scheduled_events
		WHERE event_date >= $1 AND event_date <= $2 AND processed = FALSE
		ORDER BY event_date, created_at
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEventsPG(rows)
}

func (s *PostgreSQLStore) MarkEventProcessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE scheduled_events SET processed = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("mark event %s processed: %w", id, err)
	}
	return nil
}

func (s *PostgreSQLStore) CreateCheckpoint(ctx context.Context, c *Checkpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_checkpoints (id, created_at, label, state, checksum)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.CreatedAt.UTC(), c.Label, c.State, c.Checksum)
	if err != nil {
		return fmt.Errorf("insert checkpoint %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, created_at, label, state, checksum
		FROM system_checkpoints WHERE id = $1
	`, id)

	var c Checkpoint
	err := row.Scan(&c.ID, &c.CreatedAt, &c.Label, &c.State, &c.Checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	return &c, nil
}

func (s *PostgreSQLStore) ListCheckpoints(ctx context.Context) ([]*Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, label, state, checksum
		FROM system_checkpoints ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		var c Checkpoint
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.Label, &c.State, &c.Checksum); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, &c)
	}
	return checkpoints, rows.Err()
}

// Close is a no-op: the pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}

func collectEventsPG(rows pgx.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var e Event
		var typ string
		var details []byte
		err := rows.Scan(&e.ID, &typ, &e.Date, &e.CreatedAt, &details, &e.Processed)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = EventType(typ)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
