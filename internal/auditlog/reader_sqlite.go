package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// SQLiteReader implements Reader for SQLite databases.
type SQLiteReader struct {
	db *sql.DB
}

// NewSQLiteReader creates a new SQLite operation log reader.
func NewSQLiteReader(db *sql.DB) (*SQLiteReader, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteReader{db: db}, nil
}

// GetLogs returns a paginated list of log entries. A details filter is
// matched against the JSON details of each candidate row after the SQL
// filters narrow the set.
func (r *SQLiteReader) GetLogs(ctx context.Context, params LogQueryParams) (*LogListResult, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)

	conditions, args := sqliteDateRangeConditions(params.QueryParams)

	if params.ItemID != "" {
		conditions = append(conditions, "item_id = ?")
		args = append(args, params.ItemID)
	}
	if params.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, params.UserID)
	}
	if params.ContainerID != "" {
		conditions = append(conditions, "container_id = ?")
		args = append(args, params.ContainerID)
	}
	if params.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, string(params.Operation))
	}

	where := buildWhereClause(conditions)

	query := `SELECT id, timestamp, operation, user_id, item_id, container_id, details
		FROM operation_logs` + where + ` ORDER BY timestamp DESC`
	if params.DetailsFilter == "" {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation logs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, rawDetails, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, err
		}
		if !matchesDetails(rawDetails, params.DetailsFilter) {
			continue
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation log rows: %w", err)
	}

	if params.DetailsFilter == "" {
		var total int
		countQuery := "SELECT COUNT(*) FROM operation_logs" + where
		countArgs := args[:len(args)-2]
		if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return nil, fmt.Errorf("failed to count operation log entries: %w", err)
		}
		return &LogListResult{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
	}

	// Details filtering paginates in memory over the filtered set.
	total := len(entries)
	if offset >= total {
		entries = []Entry{}
	} else {
		entries = entries[offset:min(offset+limit, total)]
	}
	return &LogListResult{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// GetLogByID returns a single log entry by ID.
func (r *SQLiteReader) GetLogByID(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT id, timestamp, operation, user_id, item_id, container_id, details
		FROM operation_logs WHERE id = ? LIMIT 1`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation log by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	entry, _, err := scanSQLiteEntry(rows)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func scanSQLiteEntry(rows *sql.Rows) (*Entry, []byte, error) {
	var e Entry
	var ts string
	var userID, itemID, containerID, detailsJSON sql.NullString

	if err := rows.Scan(&e.ID, &ts, &e.Operation, &userID, &itemID, &containerID, &detailsJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to scan operation log row: %w", err)
	}

	e.UserID = userID.String
	e.ItemID = itemID.String
	e.ContainerID = containerID.String
	e.Timestamp = parseSQLTimestamp(ts, e.ID)

	var raw []byte
	if detailsJSON.Valid && detailsJSON.String != "" {
		raw = []byte(detailsJSON.String)
		if err := json.Unmarshal(raw, &e.Details); err != nil {
			slog.Warn("failed to unmarshal log details JSON", "id", e.ID, "error", err)
			e.Details = nil
		}
	}
	return &e, raw, nil
}

func sqliteDateRangeConditions(params QueryParams) (conditions []string, args []interface{}) {
	if !params.StartDate.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, params.StartDate.UTC().Format("2006-01-02"))
	}
	if !params.EndDate.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, params.EndDate.AddDate(0, 0, 1).UTC().Format("2006-01-02"))
	}
	return conditions, args
}

func parseSQLTimestamp(ts string, entryID string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", ts); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", ts); err == nil {
		return t
	}

	slog.Warn("failed to parse log timestamp", "id", entryID, "raw_timestamp", ts)
	return time.Time{}
}
