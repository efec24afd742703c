package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements LogStore for PostgreSQL databases.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewPostgreSQLStore creates a new PostgreSQL operation log store.
// It creates the operation_logs table if it doesn't exist and starts
// a background cleanup goroutine if retention is configured.
func NewPostgreSQLStore(pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS operation_logs (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			operation TEXT NOT NULL,
			user_id TEXT,
			item_id TEXT,
			container_id TEXT,
			details JSONB
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation_logs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_oplog_timestamp ON operation_logs(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_oplog_operation ON operation_logs(operation)",
		"CREATE INDEX IF NOT EXISTS idx_oplog_user ON operation_logs(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_oplog_item ON operation_logs(item_id)",
		"CREATE INDEX IF NOT EXISTS idx_oplog_details_gin ON operation_logs USING GIN (details)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool:          pool,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}

	if retentionDays > 0 {
		go runRetentionSweep(store.stopCleanup, store.cleanup)
	}

	return store, nil
}

// WriteBatch writes multiple log entries to PostgreSQL.
// Larger batches run inside a single transaction.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if len(entries) < 10 {
		for _, e := range entries {
			if err := s.insertOne(ctx, s.pool, e); err != nil {
				slog.Warn("failed to insert operation log", "error", err, "id", e.ID)
			}
		}
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, e := range entries {
		if err := s.insertOne(ctx, tx, e); err != nil {
			slog.Warn("failed to insert operation log in batch", "error", err, "id", e.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// pgExecer is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgreSQLStore) insertOne(ctx context.Context, execer pgExecer, e *Entry) error {
	var detailsJSON []byte
	if len(e.Details) > 0 {
		var err error
		detailsJSON, err = json.Marshal(e.Details)
		if err != nil {
			slog.Warn("failed to marshal log details", "error", err, "id", e.ID)
			detailsJSON = []byte("{}")
		}
	}

	_, err := execer.Exec(ctx, `
		INSERT INTO operation_logs (id, timestamp, operation, user_id, item_id, container_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Timestamp, string(e.Operation),
		nullIfEmpty(e.UserID), nullIfEmpty(e.ItemID), nullIfEmpty(e.ContainerID), detailsJSON)
	return err
}

// Flush is a no-op for PostgreSQL as writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine.
// Note: We don't close the pool here as it's managed by the storage layer.
// Safe to call multiple times.
func (s *PostgreSQLStore) Close() error {
	if s.retentionDays > 0 && s.stopCleanup != nil {
		s.closeOnce.Do(func() {
			close(s.stopCleanup)
		})
	}
	return nil
}

// cleanup deletes log entries older than the retention period.
func (s *PostgreSQLStore) cleanup() {
	if s.retentionDays <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	result, err := s.pool.Exec(ctx, "DELETE FROM operation_logs WHERE timestamp < $1", cutoff)
	if err != nil {
		slog.Error("failed to cleanup old operation logs", "error", err)
		return
	}

	if result.RowsAffected() > 0 {
		slog.Info("cleaned up old operation logs", "deleted", result.RowsAffected())
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
