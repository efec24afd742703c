// Package inventory persists containers, items, positions, waste records,
// and return missions. Stores share the database connection provided by the
// storage package; SQLite and PostgreSQL backends are available.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cargohold/internal/core"
)

// Store is the persistence interface for the cargo inventory.
// Lookup methods return (nil, nil) when the record does not exist.
// Implementations must be safe for concurrent use.
type Store interface {
	// Containers
	CreateContainer(ctx context.Context, c *core.Container) error
	GetContainer(ctx context.Context, id string) (*core.Container, error)
	ListContainers(ctx context.Context, skip, limit int) ([]*core.Container, error)
	ContainersByZone(ctx context.Context, zone string) ([]*core.Container, error)

	// Items
	CreateItem(ctx context.Context, it *core.Item) error
	UpdateItem(ctx context.Context, it *core.Item) error
	GetItem(ctx context.Context, id string) (*core.Item, error)
	GetItemByName(ctx context.Context, name string) (*core.Item, error)
	ListItems(ctx context.Context, skip, limit int) ([]*core.Item, error)
	ActiveItems(ctx context.Context) ([]*core.Item, error)

	// Positions
	CreatePosition(ctx context.Context, p *core.Position) error
	DeletePosition(ctx context.Context, id string) error
	ItemPosition(ctx context.Context, itemID string) (*core.Position, error)
	ContainerPositions(ctx context.Context, containerID string) ([]*core.Position, error)

	// Waste records
	CreateWasteRecord(ctx context.Context, w *core.WasteRecord) error
	WasteRecordForItem(ctx context.Context, itemID string) (*core.WasteRecord, error)
	UnassignedWasteRecords(ctx context.Context) ([]*core.WasteRecord, error)
	AssignWasteToMission(ctx context.Context, wasteID, missionID string) error

	// Return missions
	CreateReturnMission(ctx context.Context, m *core.ReturnMission) error
	GetReturnMission(ctx context.Context, id string) (*core.ReturnMission, error)
	UpdateReturnMission(ctx context.Context, m *core.ReturnMission) error
	ActiveReturnMissions(ctx context.Context) ([]*core.ReturnMission, error)

	// Close releases store resources. It does not close the shared
	// database connection, which is owned by the storage layer.
	Close() error
}

// DefaultListLimit bounds unpaginated list queries.
const DefaultListLimit = 100

// NewID returns a prefixed short ID, e.g. "pos_1f2e3d4c".
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
}
