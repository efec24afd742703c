package simulation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	dateLayout = "2006-01-02"
	stateRowID = "simulation_state"
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite simulation store, creating the schema
// if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS simulation_state (
			id TEXT PRIMARY KEY,
			sim_date TEXT NOT NULL,
			last_checkpoint TEXT,
			is_simulating INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			event_date TEXT NOT NULL,
			created_at TEXT NOT NULL,
			details TEXT,
			processed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS system_checkpoints (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			checksum TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create simulation schema: %w", err)
		}
	}

	if _, err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_events_date ON scheduled_events(event_date, processed)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) State(ctx context.Context) (*State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sim_date, last_checkpoint, is_simulating
		FROM simulation_state WHERE id = ?
	`, stateRowID)

	var current string
	var checkpoint sql.NullString
	var simulating int
	err := row.Scan(&current, &checkpoint, &simulating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan simulation state: %w", err)
	}

	st := &State{Simulating: simulating != 0}
	if st.CurrentDate, err = time.Parse(dateLayout, current); err != nil {
		return nil, fmt.Errorf("parse simulation date %q: %w", current, err)
	}
	if checkpoint.Valid {
		if t, err := time.Parse(time.RFC3339Nano, checkpoint.String); err == nil {
			st.LastCheckpoint = &t
		}
	}
	return st, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, st *State) error {
	var checkpoint interface{}
	if st.LastCheckpoint != nil {
		checkpoint = st.LastCheckpoint.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO simulation_state (id, sim_date, last_checkpoint, is_simulating)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sim_date = excluded.sim_date,
			last_checkpoint = excluded.last_checkpoint,
			is_simulating = excluded.is_simulating
	`, stateRowID, st.CurrentDate.Format(dateLayout), checkpoint, boolToInt(st.Simulating))
	if err != nil {
		return fmt.Errorf("save simulation state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, e *Event) error {
	details, err := marshalDetails(e.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_events (id, event_type, event_date, created_at, details, processed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Type), e.Date.Format(dateLayout),
		e.CreatedAt.UTC().Format(time.RFC3339Nano), details, boolToInt(e.Processed))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) PendingEventsForDate(ctx context.Context, date time.Time) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, event_date, created_at, details, processed
		FROM scheduled_events
		WHERE event_date = ? AND processed = 0
		ORDER BY created_at
	`, date.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *SQLiteStore) PendingEventsBetween(ctx context.Context, start, end time.Time) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, event_date, created_at, details, processed
		FROM scheduled_events
		WHERE event_date >= ? AND event_date <= ? AND processed = 0
		ORDER BY event_date, created_at
	`, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *SQLiteStore) MarkEventProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE scheduled_events SET processed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark event %s processed: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) CreateCheckpoint(ctx context.Context, c *Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_checkpoints (id, created_at, label, state, checksum)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.CreatedAt.UTC().Format(time.RFC3339Nano), c.Label, string(c.State), c.Checksum)
	if err != nil {
		return fmt.Errorf("insert checkpoint %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, label, state, checksum
		FROM system_checkpoints WHERE id = ?
	`, id)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, label, state, checksum
		FROM system_checkpoints ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, c)
	}
	return checkpoints, rows.Err()
}

// Close is a no-op: the *sql.DB is owned by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var typ, date, created string
	var details sql.NullString
	var processed int
	err := row.Scan(&e.ID, &typ, &date, &created, &details, &processed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Type = EventType(typ)
	if e.Date, err = time.Parse(dateLayout, date[:min(len(date), 10)]); err != nil {
		return nil, fmt.Errorf("parse event date %q: %w", date, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		e.CreatedAt = t
	}
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
			return nil, fmt.Errorf("decode event details: %w", err)
		}
	}
	e.Processed = processed != 0
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var c Checkpoint
	var created, state string
	err := row.Scan(&c.ID, &created, &c.Label, &state, &c.Checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		c.CreatedAt = t
	}
	c.State = []byte(state)
	return &c, nil
}

func marshalDetails(details map[string]string) (interface{}, error) {
	if len(details) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode event details: %w", err)
	}
	return string(raw), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
