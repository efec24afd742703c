package auditlog

import (
	"context"
	"time"

	"cargohold/internal/core"
)

// QueryParams specifies the date range for log retrieval.
type QueryParams struct {
	StartDate time.Time // Inclusive start (day precision)
	EndDate   time.Time // Inclusive end (day precision)
}

// LogQueryParams specifies query parameters for paginated log retrieval.
// DetailsFilter is a "path=value" expression matched against the Details
// JSON of each entry, e.g. "toContainer=contB".
type LogQueryParams struct {
	QueryParams
	ItemID        string
	UserID        string
	ContainerID   string
	Operation     core.Operation
	DetailsFilter string
	Limit         int
	Offset        int
}

// LogListResult holds a paginated list of log entries.
type LogListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Reader provides read access to operation log data.
type Reader interface {
	// GetLogs returns a paginated list of log entries with optional filtering.
	GetLogs(ctx context.Context, params LogQueryParams) (*LogListResult, error)

	// GetLogByID returns a single log entry by ID.
	// Returns (nil, nil) when no entry exists for the given ID.
	GetLogByID(ctx context.Context, id string) (*Entry, error)
}
