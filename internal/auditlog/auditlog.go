// Package auditlog records cargo operations for later review.
// Every placement, retrieval, disposal and import/export is captured as an
// entry and stored in a configurable backend.
package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cargohold/internal/core"
)

// LogStore defines the interface for operation log storage backends.
// Implementations must be safe for concurrent use.
type LogStore interface {
	// WriteBatch writes multiple log entries to storage.
	// This is called by the Logger when flushing buffered entries.
	WriteBatch(ctx context.Context, entries []*Entry) error

	// Flush forces any pending writes to complete.
	// Called during graceful shutdown.
	Flush(ctx context.Context) error

	// Close releases resources and flushes pending writes.
	Close() error
}

// Entry represents a single logged operation.
// Core fields are indexed for efficient queries.
type Entry struct {
	// ID is a unique identifier for this log entry (UUID)
	ID string `json:"id" bson:"_id"`

	// Timestamp is when the operation happened
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// Operation is the kind of action performed
	Operation core.Operation `json:"operation" bson:"operation"`

	// UserID identifies the astronaut who performed the action, when known
	UserID string `json:"user_id,omitempty" bson:"user_id,omitempty"`

	// ItemID is the item the action concerned, when there is one
	ItemID string `json:"item_id,omitempty" bson:"item_id,omitempty"`

	// ContainerID is the container involved, when there is one
	ContainerID string `json:"container_id,omitempty" bson:"container_id,omitempty"`

	// Details carries operation-specific context such as source and
	// destination containers or import row counts
	Details map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
}

// NewEntry creates a log entry stamped with a fresh ID.
func NewEntry(op core.Operation, ts time.Time) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Operation: op,
	}
}

// Record converts the entry to its API representation.
func (e *Entry) Record() core.LogRecord {
	return core.LogRecord{
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
		UserID:     e.UserID,
		ActionType: string(e.Operation),
		ItemID:     e.ItemID,
		Details:    e.Details,
	}
}

// Config holds operation logging configuration
type Config struct {
	// Enabled controls whether operation logging is active
	Enabled bool

	// BufferSize is the number of log entries to buffer before flushing
	BufferSize int

	// FlushInterval is how often to flush buffered logs
	FlushInterval time.Duration

	// RetentionDays is how long to keep logs (0 = forever)
	RetentionDays int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		RetentionDays: 90,
	}
}
