package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLReader implements Reader for PostgreSQL databases.
type PostgreSQLReader struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLReader creates a new PostgreSQL operation log reader.
func NewPostgreSQLReader(pool *pgxpool.Pool) (*PostgreSQLReader, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	return &PostgreSQLReader{pool: pool}, nil
}

// GetLogs returns a paginated list of log entries.
func (r *PostgreSQLReader) GetLogs(ctx context.Context, params LogQueryParams) (*LogListResult, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)

	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !params.StartDate.IsZero() {
		conditions = append(conditions, "timestamp >= "+arg(params.StartDate.UTC()))
	}
	if !params.EndDate.IsZero() {
		conditions = append(conditions, "timestamp < "+arg(params.EndDate.AddDate(0, 0, 1).UTC()))
	}
	if params.ItemID != "" {
		conditions = append(conditions, "item_id = "+arg(params.ItemID))
	}
	if params.UserID != "" {
		conditions = append(conditions, "user_id = "+arg(params.UserID))
	}
	if params.ContainerID != "" {
		conditions = append(conditions, "container_id = "+arg(params.ContainerID))
	}
	if params.Operation != "" {
		conditions = append(conditions, "operation = "+arg(string(params.Operation)))
	}

	where := buildWhereClause(conditions)

	query := `SELECT id, timestamp, operation, user_id, item_id, container_id, details
		FROM operation_logs` + where + ` ORDER BY timestamp DESC`
	if params.DetailsFilter == "" {
		query += " LIMIT " + arg(limit) + " OFFSET " + arg(offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation logs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, rawDetails, err := scanPGEntry(rows)
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
		countArgs := args[:len(args)-2]
		countQuery := "SELECT COUNT(*) FROM operation_logs" + where
		if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return nil, fmt.Errorf("failed to count operation log entries: %w", err)
		}
		return &LogListResult{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
	}

	total := len(entries)
	if offset >= total {
		entries = []Entry{}
	} else {
		entries = entries[offset:min(offset+limit, total)]
	}
	return &LogListResult{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// GetLogByID returns a single log entry by ID.
func (r *PostgreSQLReader) GetLogByID(ctx context.Context, id string) (*Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, timestamp, operation, user_id, item_id, container_id, details
		FROM operation_logs WHERE id = $1 LIMIT 1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation log by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	entry, _, err := scanPGEntry(rows)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func scanPGEntry(rows pgx.Rows) (*Entry, []byte, error) {
	var e Entry
	var userID, itemID, containerID *string
	var rawDetails []byte

	if err := rows.Scan(&e.ID, &e.Timestamp, &e.Operation, &userID, &itemID, &containerID, &rawDetails); err != nil {
		return nil, nil, fmt.Errorf("failed to scan operation log row: %w", err)
	}

	if userID != nil {
		e.UserID = *userID
	}
	if itemID != nil {
		e.ItemID = *itemID
	}
	if containerID != nil {
		e.ContainerID = *containerID
	}
	if len(rawDetails) > 0 {
		if err := json.Unmarshal(rawDetails, &e.Details); err != nil {
			slog.Warn("failed to unmarshal log details JSON", "id", e.ID, "error", err)
			e.Details = nil
		}
	}
	return &e, rawDetails, nil
}
