// Package rearrangement analyzes container occupancy and plans which stored
// items to move when incoming cargo does not fit. Selection runs simulated
// annealing over the set of movable items; lower priority items move first.
package rearrangement

import (
	"context"

	"cargohold/internal/core"
	"cargohold/internal/placement"
	"cargohold/internal/spatial"
)

// Analysis is a container occupancy snapshot.
type Analysis struct {
	ContainerID      string          `json:"containerId"`
	TotalVolume      float64         `json:"totalVolume"`
	UsedVolume       float64         `json:"usedVolume"`
	AvailableVolume  float64         `json:"availableVolume"`
	SpaceUtilization float64         `json:"spaceUtilization"`
	ItemCount        int             `json:"itemCount"`
	EmptySpaces      []spatial.Space `json:"emptySpaces"`
	Fragmentation    float64         `json:"fragmentation"`
}

// Analyze computes the occupancy, maximal empty spaces, and fragmentation of
// a container.
func Analyze(ctx context.Context, states placement.StateSource, container *core.Container) (*Analysis, error) {
	state, err := states.ContainerState(ctx, container.ID)
	if err != nil {
		return nil, err
	}

	grid := spatial.NewGrid(container)
	var used float64
	for _, b := range state.Boxes {
		grid.Mark(b.Box)
		used += b.Box.Dims.Volume()
	}

	total := container.Volume()
	available := total - used
	if available < 0 {
		available = 0
	}

	spaces := grid.MaximalSpaces()
	a := &Analysis{
		ContainerID:     container.ID,
		TotalVolume:     total,
		UsedVolume:      used,
		AvailableVolume: available,
		ItemCount:       len(state.Boxes),
		EmptySpaces:     spaces,
		Fragmentation:   spatial.Fragmentation(spaces, available),
	}
	if total > 0 {
		a.SpaceUtilization = used / total
	}
	return a, nil
}
