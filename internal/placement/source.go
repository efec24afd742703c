package placement

import (
	"context"
	"fmt"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
	"cargohold/internal/spatial"
)

// StoreSource loads container occupancy straight from the inventory store.
type StoreSource struct {
	store inventory.Store
}

// NewStoreSource creates a store-backed state source.
func NewStoreSource(store inventory.Store) *StoreSource {
	return &StoreSource{store: store}
}

// ContainerState reconstructs the container's occupancy from position
// history. Only an item's most recent position counts, and only when that
// position is in this container; older rows are relocation history.
func (s *StoreSource) ContainerState(ctx context.Context, containerID string) (*ContainerState, error) {
	positions, err := s.store.ContainerPositions(ctx, containerID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	state := &ContainerState{ContainerID: containerID}
	for _, p := range positions {
		if seen[p.ItemID] {
			continue
		}
		seen[p.ItemID] = true

		current, err := s.store.ItemPosition(ctx, p.ItemID)
		if err != nil {
			return nil, fmt.Errorf("current position of %s: %w", p.ItemID, err)
		}
		if current == nil || current.ContainerID != containerID {
			continue
		}

		item, err := s.store.GetItem(ctx, p.ItemID)
		if err != nil {
			return nil, fmt.Errorf("load item %s: %w", p.ItemID, err)
		}
		if item == nil {
			continue
		}

		state.Boxes = append(state.Boxes, OccupiedBox{
			ItemID:   item.ID,
			Priority: item.Priority,
			Box: spatial.Box{
				Pos:  spatial.Point{X: current.X, Y: current.Y, Z: current.Z},
				Dims: item.OrientedDims(current.Orientation),
			},
		})
	}
	return state, nil
}

var _ StateSource = (*StoreSource)(nil)

// Decisions converts a plan's placements to the wire form.
func Decisions(plan *Plan) []core.PlacementDecision {
	decisions := make([]core.PlacementDecision, 0, len(plan.Placements))
	for _, p := range plan.Placements {
		decisions = append(decisions, core.PlacementDecision{
			ItemID:      p.ItemID,
			ContainerID: p.ContainerID,
			Position:    *boxPosition(spatial.Box{Pos: p.Pos, Dims: p.Dims}),
			Orientation: p.Orientation,
		})
	}
	return decisions
}
