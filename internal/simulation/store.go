// Package simulation advances a persisted station clock: per-day item
// usage, expiry sweeps, scheduled events, and checksummed checkpoints of
// the simulation state.
package simulation

import (
	"context"
	"time"
)

// EventType classifies a scheduled event.
type EventType string

const (
	EventItemExpiry    EventType = "item_expiry"
	EventReturnMission EventType = "return_mission"
	EventMaintenance   EventType = "maintenance"
	EventCustom        EventType = "custom"
)

// State is the persisted simulation clock.
type State struct {
	CurrentDate    time.Time
	LastCheckpoint *time.Time
	Simulating     bool
}

// Event is a scheduled simulation event. Details carries event-specific
// references such as item or mission IDs.
type Event struct {
	ID        string
	Type      EventType
	Date      time.Time
	CreatedAt time.Time
	Details   map[string]string
	Processed bool
}

// Checkpoint is a snapshot of the simulation state. Checksum is the xxhash
// of the serialized state, hex-encoded.
type Checkpoint struct {
	ID        string
	CreatedAt time.Time
	Label     string
	State     []byte
	Checksum  string
}

// Store persists simulation state, events, and checkpoints.
// Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	State(ctx context.Context) (*State, error)
	SaveState(ctx context.Context, s *State) error

	CreateEvent(ctx context.Context, e *Event) error
	PendingEventsForDate(ctx context.Context, date time.Time) ([]*Event, error)
	PendingEventsBetween(ctx context.Context, start, end time.Time) ([]*Event, error)
	MarkEventProcessed(ctx context.Context, id string) error

	CreateCheckpoint(ctx context.Context, c *Checkpoint) error
	GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error)
	ListCheckpoints(ctx context.Context) ([]*Checkpoint, error)

	Close() error
}
