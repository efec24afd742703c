// Package placement computes placement recommendations for incoming cargo.
// The algorithm is a modified 3D bin packing: items are placed in priority
// order, preferred zones first, and candidate positions are scored by
// priority, zone match, accessibility, and space utilization.
package placement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"cargohold/internal/core"
	"cargohold/internal/spatial"
)

// Weights tunes the placement score. The zero value is not useful; call
// DefaultWeights.
type Weights struct {
	// ZoneBonus is added when an item lands in its preferred zone.
	ZoneBonus float64
	// ZoneBonusOverrides replaces ZoneBonus for specific zones.
	ZoneBonusOverrides map[string]float64
	// AccessibilityWeight scales the accessibility score.
	AccessibilityWeight float64
	// VolumeCap bounds the space-utilization term.
	VolumeCap float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		ZoneBonus:           0.5,
		AccessibilityWeight: 0.3,
		VolumeCap:           0.2,
	}
}

func (w Weights) zoneBonusFor(zone string) float64 {
	if b, ok := w.ZoneBonusOverrides[zone]; ok {
		return b
	}
	return w.ZoneBonus
}

// OccupiedBox is one item currently stored in a container.
type OccupiedBox struct {
	ItemID   string
	Priority int
	Box      spatial.Box
}

// ContainerState is a container's occupancy snapshot.
type ContainerState struct {
	ContainerID string
	Boxes       []OccupiedBox
}

// StateSource yields the current occupancy of a container. The cache layer
// and the plain store-backed source both implement it.
type StateSource interface {
	ContainerState(ctx context.Context, containerID string) (*ContainerState, error)
}

// Placement is one recommended placement.
type Placement struct {
	ItemID      string
	ContainerID string
	Pos         spatial.Point
	Dims        core.Dimensions
	Orientation int
}

// Plan is the result of a placement run.
type Plan struct {
	Placements     []Placement
	Rearrangements []core.RearrangementStep
}

// Engine computes placement plans.
type Engine struct {
	states  StateSource
	weights Weights
	logger  *slog.Logger
}

// NewEngine creates a placement engine.
func NewEngine(states StateSource, weights Weights, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{states: states, weights: weights, logger: logger}
}

// Recommend places items into containers. Items are processed highest
// priority first, largest first within equal priority. Each item is tried in
// its preferred zone, then anywhere, then via a single-move rearrangement.
// Items that fit nowhere are skipped and logged.
func (e *Engine) Recommend(ctx context.Context, items []*core.Item, containers []*core.Container) (*Plan, error) {
	if len(items) == 0 || len(containers) == 0 {
		return nil, core.NewInvalidRequestError("items and containers must be provided", nil)
	}

	sorted := make([]*core.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].Volume() > sorted[j].Volume()
	})

	byZone := make(map[string][]*core.Container)
	for _, c := range containers {
		byZone[c.Zone] = append(byZone[c.Zone], c)
	}

	grids, err := e.loadGrids(ctx, containers)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, item := range sorted {
		var best *candidate
		if zoned := byZone[item.PreferredZone]; item.PreferredZone != "" && len(zoned) > 0 {
			best, err = e.findBest(ctx, item, zoned, grids)
			if err != nil {
				return nil, err
			}
		}
		if best == nil {
			best, err = e.findBest(ctx, item, containers, grids)
			if err != nil {
				return nil, err
			}
		}
		if best == nil {
			moved := e.rearrangeFor(item, containers, grids, plan)
			if !moved {
				e.logger.Warn("no placement found for item",
					"item_id", item.ID, "priority", item.Priority)
			}
			continue
		}

		grids[best.containerID].Mark(spatial.Box{Pos: best.pos, Dims: best.dims})
		plan.Placements = append(plan.Placements, Placement{
			ItemID:      item.ID,
			ContainerID: best.containerID,
			Pos:         best.pos,
			Dims:        best.dims,
			Orientation: best.orientation,
		})
	}
	return plan, nil
}

// loadGrids builds an occupancy grid per container, loading states in
// parallel.
func (e *Engine) loadGrids(ctx context.Context, containers []*core.Container) (map[string]*spatial.Grid, error) {
	grids := make(map[string]*spatial.Grid, len(containers))
	states := make([]*ContainerState, len(containers))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range containers {
		g.Go(func() error {
			st, err := e.states.ContainerState(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("load state of container %s: %w", c.ID, err)
			}
			states[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, c := range containers {
		grid := spatial.NewGrid(c)
		if states[i] != nil {
			for _, b := range states[i].Boxes {
				grid.Mark(b.Box)
			}
		}
		grids[c.ID] = grid
	}
	return grids, nil
}

type candidate struct {
	containerID string
	pos         spatial.Point
	dims        core.Dimensions
	orientation int
	score       float64
}

// findBest scores every valid position of every orientation in every given
// container, in parallel per container, and returns the highest-scoring
// candidate or nil when the item fits nowhere.
func (e *Engine) findBest(ctx context.Context, item *core.Item, containers []*core.Container, grids map[string]*spatial.Grid) (*candidate, error) {
	results := make([]*candidate, len(containers))

	g, _ := errgroup.WithContext(ctx)
	for i, c := range containers {
		g.Go(func() error {
			results[i] = e.bestInContainer(item, c, grids[c.ID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *candidate
	for _, r := range results {
		if r != nil && (best == nil || r.score > best.score) {
			best = r
		}
	}
	return best, nil
}

func (e *Engine) bestInContainer(item *core.Item, c *core.Container, grid *spatial.Grid) *candidate {
	if grid == nil {
		return nil
	}
	var best *candidate
	for oi, dims := range item.Orientations() {
		if !c.Fits(dims) {
			continue
		}
		maxX := int(c.Width - dims.Width)
		maxY := int(c.Height - dims.Height)
		maxZ := int(c.Depth - dims.Depth)
		for x := 0; x <= maxX; x++ {
			for y := 0; y <= maxY; y++ {
				for z := 0; z <= maxZ; z++ {
					pos := spatial.Point{X: float64(x), Y: float64(y), Z: float64(z)}
					if !grid.Free(spatial.Box{Pos: pos, Dims: dims}) {
						continue
					}
					score := e.score(item, c, pos, dims)
					if best == nil || score > best.score {
						best = &candidate{
							containerID: c.ID,
							pos:         pos,
							dims:        dims,
							orientation: oi,
							score:       score,
						}
					}
				}
			}
		}
	}
	return best
}

// score rates one candidate placement. Higher is better.
func (e *Engine) score(item *core.Item, c *core.Container, pos spatial.Point, dims core.Dimensions) float64 {
	s := float64(item.Priority) / 100.0
	if item.PreferredZone != "" && item.PreferredZone == c.Zone {
		s += e.weights.zoneBonusFor(c.Zone)
	}
	s += spatial.Accessibility(pos, dims, c) * e.weights.AccessibilityWeight

	volumeScore := dims.Volume() / c.Volume() * 10
	if volumeScore > e.weights.VolumeCap {
		volumeScore = e.weights.VolumeCap
	}
	s += volumeScore
	return s
}

// rearrangeFor tries to free space for an item by relocating one
// lower-priority item to another container. On success the move is appended
// to the plan's rearrangement steps and the item is placed in the freed
// region. Returns false when no single move helps.
func (e *Engine) rearrangeFor(item *core.Item, containers []*core.Container, grids map[string]*spatial.Grid, plan *Plan) bool {
	type moveOption struct {
		box       OccupiedBox
		container *core.Container
	}

	for _, c := range containers {
		// Lowest-priority occupant first.
		var options []moveOption
		for _, b := range e.occupants(c.ID) {
			if b.Priority < item.Priority {
				options = append(options, moveOption{box: b, container: c})
			}
		}
		if len(options) == 0 {
			continue
		}
		sort.Slice(options, func(i, j int) bool {
			return options[i].box.Priority < options[j].box.Priority
		})

		for _, opt := range options {
			target, targetPos := e.relocationTarget(opt.box, c, containers, grids)
			if target == nil {
				continue
			}

			// Freed region must actually take the new item.
			freedBox := opt.box.Box
			freedDims := item.OrientedDims(0)
			if freedDims.Width > freedBox.Dims.Width ||
				freedDims.Height > freedBox.Dims.Height ||
				freedDims.Depth > freedBox.Dims.Depth {
				continue
			}

			grids[target.ID].Mark(spatial.Box{Pos: targetPos, Dims: opt.box.Box.Dims})

			step := len(plan.Rearrangements) + 1
			plan.Rearrangements = append(plan.Rearrangements, core.RearrangementStep{
				Step:          step,
				Action:        "move",
				ItemID:        opt.box.ItemID,
				FromContainer: c.ID,
				FromPosition:  boxPosition(opt.box.Box),
				ToContainer:   target.ID,
				ToPosition:    boxPosition(spatial.Box{Pos: targetPos, Dims: opt.box.Box.Dims}),
			})
			plan.Placements = append(plan.Placements, Placement{
				ItemID:      item.ID,
				ContainerID: c.ID,
				Pos:         freedBox.Pos,
				Dims:        freedDims,
				Orientation: 0,
			})
			return true
		}
	}
	return false
}

// occupants returns the occupied boxes known for a container. States were
// loaded when the grids were built; reload here is deliberate so that
// rearrangement sees the same snapshot.
func (e *Engine) occupants(containerID string) []OccupiedBox {
	st, err := e.states.ContainerState(context.Background(), containerID)
	if err != nil || st == nil {
		return nil
	}
	return st.Boxes
}

// relocationTarget finds a container (other than from) and a free position
// where the box fits.
func (e *Engine) relocationTarget(b OccupiedBox, from *core.Container, containers []*core.Container, grids map[string]*spatial.Grid) (*core.Container, spatial.Point) {
	for _, c := range containers {
		if c.ID == from.ID || !c.Fits(b.Box.Dims) {
			continue
		}
		grid := grids[c.ID]
		if grid == nil {
			continue
		}
		maxX := int(c.Width - b.Box.Dims.Width)
		maxY := int(c.Height - b.Box.Dims.Height)
		maxZ := int(c.Depth - b.Box.Dims.Depth)
		for z := 0; z <= maxZ; z++ {
			for y := 0; y <= maxY; y++ {
				for x := 0; x <= maxX; x++ {
					pos := spatial.Point{X: float64(x), Y: float64(y), Z: float64(z)}
					if grid.Free(spatial.Box{Pos: pos, Dims: b.Box.Dims}) {
						return c, pos
					}
				}
			}
		}
	}
	return nil, spatial.Point{}
}

func boxPosition(b spatial.Box) *core.BoxPosition {
	bp := core.BoxPosition{
		StartCoordinates: core.Coordinates{Width: b.Pos.X, Height: b.Pos.Y, Depth: b.Pos.Z},
		EndCoordinates: core.Coordinates{
			Width:  b.Pos.X + b.Dims.Width,
			Height: b.Pos.Y + b.Dims.Height,
			Depth:  b.Pos.Z + b.Dims.Depth,
		},
	}
	return &bp
}
