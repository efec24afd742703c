package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SQLite has a default limit of 999 bindable parameters per query
// (SQLITE_MAX_VARIABLE_NUMBER). With 7 columns per entry we chunk larger
// batches to stay under it.
const (
	maxSQLiteParams    = 999
	columnsPerEntry    = 7
	maxEntriesPerBatch = maxSQLiteParams / columnsPerEntry
)

// SQLiteStore implements LogStore for SQLite databases.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore creates a new SQLite operation log store.
// It creates the operation_logs table if it doesn't exist and starts
// a background cleanup goroutine if retention is configured.
func NewSQLiteStore(db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS operation_logs (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			operation TEXT NOT NULL,
			user_id TEXT,
			item_id TEXT,
			container_id TEXT,
			details JSON
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
		"CREATE INDEX IF NOT EXISTS idx_oplog_container ON operation_logs(container_id)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}

	if retentionDays > 0 {
		go runRetentionSweep(store.stopCleanup, store.cleanup)
	}

	return store, nil
}

// WriteBatch writes multiple log entries to SQLite using batch insert.
// Entries are chunked to stay within SQLite's parameter limit.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	for i := 0; i < len(entries); i += maxEntriesPerBatch {
		end := min(i+maxEntriesPerBatch, len(entries))
		chunk := entries[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]interface{}, 0, len(chunk)*columnsPerEntry)

		for j, e := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?)"

			// NULL for empty details keeps the column queryable
			var detailsValue interface{}
			if len(e.Details) > 0 {
				raw, err := json.Marshal(e.Details)
				if err != nil {
					slog.Warn("failed to marshal log details", "error", err, "id", e.ID)
				} else {
					detailsValue = string(raw)
				}
			}

			values = append(values,
				e.ID,
				e.Timestamp.UTC().Format(time.RFC3339Nano),
				string(e.Operation),
				e.UserID,
				e.ItemID,
				e.ContainerID,
				detailsValue,
			)
		}

		query := `INSERT OR IGNORE INTO operation_logs (id, timestamp, operation, user_id, item_id, container_id, details) VALUES ` +
			strings.Join(placeholders, ",")

		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert operation logs batch %d: %w", i/maxEntriesPerBatch, err)
		}
	}

	return nil
}

// Flush is a no-op for SQLite as writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine.
// Note: We don't close the DB here as it's managed by the storage layer.
// Safe to call multiple times.
func (s *SQLiteStore) Close() error {
	if s.retentionDays > 0 && s.stopCleanup != nil {
		s.closeOnce.Do(func() {
			close(s.stopCleanup)
		})
	}
	return nil
}

// cleanup deletes log entries older than the retention period.
func (s *SQLiteStore) cleanup() {
	if s.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays).UTC().Format(time.RFC3339)

	result, err := s.db.Exec("DELETE FROM operation_logs WHERE timestamp < ?", cutoff)
	if err != nil {
		slog.Error("failed to cleanup old operation logs", "error", err)
		return
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		slog.Info("cleaned up old operation logs", "deleted", rowsAffected)
	}
}
