package rearrangement

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
	"cargohold/internal/placement"
)

const (
	maxCandidates      = 10
	maxIterations      = 1000
	initialTemperature = 100.0
	coolingRate        = 0.95

	// movableLimit bounds how many stored items a single plan considers.
	movableLimit = 20
)

// movable is a stored item that may be relocated.
type movable struct {
	item   *core.Item
	pos    *core.Position
	dims   core.Dimensions
	volume float64
	score  float64
}

// selection is one candidate set of items to move out of the container.
type selection struct {
	picked      []int // indexes into the movable slice
	movedVolume float64
}

// Plan is the outcome of a rearrangement optimization.
type Plan struct {
	Success        bool                     `json:"success"`
	Reason         string                   `json:"reason,omitempty"`
	ItemsToMove    []string                 `json:"itemsToMove"`
	Steps          []core.RearrangementStep `json:"steps"`
	ResultingSpace float64                  `json:"resultingSpace"`
}

// Planner selects which stored items to move to make room for new cargo.
type Planner struct {
	store  inventory.Store
	states placement.StateSource
	rng    *rand.Rand
	logger *slog.Logger
}

// NewPlanner creates a rearrangement planner.
func NewPlanner(store inventory.Store, states placement.StateSource, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		store:  store,
		states: states,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
}

// Optimize plans a rearrangement of the container to make room for the given
// new items. It returns a non-error plan with Success=false when no workable
// move set exists.
func (p *Planner) Optimize(ctx context.Context, container *core.Container, newItems []*core.Item) (*Plan, error) {
	if len(newItems) == 0 {
		return nil, core.NewInvalidRequestError("at least one new item is required", nil)
	}

	var neededVolume float64
	var prioritySum int
	for _, it := range newItems {
		neededVolume += it.Volume()
		prioritySum += it.Priority
	}
	avgPriority := float64(prioritySum) / float64(len(newItems))

	candidates, err := p.movableItems(ctx, container, neededVolume, avgPriority)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Plan{Success: false, Reason: "no suitable items to move"}, nil
	}

	runs := min(maxCandidates, len(candidates)*2)
	var best *selection
	bestScore := 0.0
	for i := 0; i < runs; i++ {
		sel, score := p.anneal(candidates, neededVolume)
		if sel != nil && score > bestScore {
			best, bestScore = sel, score
		}
	}
	if best == nil {
		return &Plan{Success: false, Reason: "unable to generate a workable move set"}, nil
	}

	plan := &Plan{
		Success:        true,
		ResultingSpace: best.movedVolume - neededVolume,
	}
	plan.Steps = p.movementSteps(candidates, best)
	for _, idx := range best.picked {
		plan.ItemsToMove = append(plan.ItemsToMove, candidates[idx].item.ID)
	}

	p.logger.Debug("rearrangement planned",
		"container", container.ID,
		"moves", len(plan.ItemsToMove),
		"score", bestScore,
	)
	return plan, nil
}

// movableItems collects stored items worth moving, ranked by movability.
// Items with higher priority than the incoming average stay put unless the
// new cargo needs a large share of the container.
func (p *Planner) movableItems(ctx context.Context, container *core.Container, neededVolume, avgPriority float64) ([]movable, error) {
	state, err := p.states.ContainerState(ctx, container.ID)
	if err != nil {
		return nil, err
	}

	largeDemand := neededVolume >= container.Volume()*0.3
	var out []movable
	for _, b := range state.Boxes {
		item, err := p.store.GetItem(ctx, b.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		if float64(item.Priority) > avgPriority && !largeDemand {
			continue
		}
		pos, err := p.store.ItemPosition(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if pos == nil || pos.ContainerID != container.ID {
			continue
		}
		dims := item.OrientedDims(pos.Orientation)
		out = append(out, movable{
			item:   item,
			pos:    pos,
			dims:   dims,
			volume: dims.Volume(),
			score:  movabilityScore(item, pos, avgPriority),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > movableLimit {
		out = out[:movableLimit]
	}
	return out, nil
}

// movabilityScore rates how cheap an item is to relocate: low priority,
// visible, and small items score high.
func movabilityScore(item *core.Item, pos *core.Position, avgPriority float64) float64 {
	priorityFactor := 1.0 - float64(item.Priority)/100
	visibilityFactor := 0.5
	if pos.Visible {
		visibilityFactor = 1.0
	}
	volumeFactor := 1.0 - min(item.Volume()/10000, 0.9)
	diffFactor := min(max(0, avgPriority-float64(item.Priority))/100, 1.0)
	return priorityFactor*0.4 + visibilityFactor*0.3 + volumeFactor*0.2 + diffFactor*0.1
}

// anneal runs one simulated annealing pass over move-set selections.
func (p *Planner) anneal(candidates []movable, neededVolume float64) (*selection, float64) {
	current := p.initialSelection(candidates, neededVolume)
	if current == nil {
		return nil, 0
	}
	currentScore := p.scoreSelection(current, candidates, neededVolume)
	best, bestScore := current, currentScore

	temperature := initialTemperature
	for i := 0; i < maxIterations; i++ {
		neighbor := p.neighbor(current, candidates, neededVolume)
		if neighbor == nil {
			continue
		}
		neighborScore := p.scoreSelection(neighbor, candidates, neededVolume)
		if p.accept(currentScore, neighborScore, temperature) {
			current, currentScore = neighbor, neighborScore
			if currentScore > bestScore {
				best, bestScore = current, currentScore
			}
		}
		temperature *= coolingRate
		if bestScore > 0.9 {
			break
		}
	}

	if bestScore < 0.5 {
		return nil, 0
	}
	return best, bestScore
}

// initialSelection greedily picks items by movability until the freed volume
// covers the demand with a 20% buffer.
func (p *Planner) initialSelection(candidates []movable, neededVolume float64) *selection {
	sel := &selection{}
	for i, m := range candidates {
		sel.picked = append(sel.picked, i)
		sel.movedVolume += m.volume
		if sel.movedVolume >= neededVolume*1.2 {
			break
		}
	}
	if sel.movedVolume < neededVolume {
		return nil
	}
	return sel
}

// neighbor produces a small mutation of the selection: add, drop, or swap one
// item. Mutations that leave too little freed volume are rejected.
func (p *Planner) neighbor(current *selection, candidates []movable, neededVolume float64) *selection {
	picked := make(map[int]bool, len(current.picked))
	for _, idx := range current.picked {
		picked[idx] = true
	}
	var unpicked []int
	for i := range candidates {
		if !picked[i] {
			unpicked = append(unpicked, i)
		}
	}

	next := &selection{
		picked:      append([]int(nil), current.picked...),
		movedVolume: current.movedVolume,
	}

	switch p.rng.Intn(3) {
	case 0:
		if len(unpicked) == 0 {
			return nil
		}
		idx := unpicked[p.rng.Intn(len(unpicked))]
		next.picked = append(next.picked, idx)
		next.movedVolume += candidates[idx].volume
	case 1:
		if len(next.picked) <= 1 {
			return nil
		}
		at := p.rng.Intn(len(next.picked))
		idx := next.picked[at]
		next.picked = append(next.picked[:at], next.picked[at+1:]...)
		next.movedVolume -= candidates[idx].volume
		if next.movedVolume < neededVolume {
			return nil
		}
	default:
		if len(unpicked) == 0 || len(next.picked) == 0 {
			return nil
		}
		at := p.rng.Intn(len(next.picked))
		out := next.picked[at]
		in := unpicked[p.rng.Intn(len(unpicked))]
		next.picked[at] = in
		next.movedVolume += candidates[in].volume - candidates[out].volume
		if next.movedVolume < neededVolume {
			return nil
		}
	}
	return next
}

// scoreSelection rates a selection on space efficiency, move count, and the
// priority of what gets displaced.
func (p *Planner) scoreSelection(sel *selection, candidates []movable, neededVolume float64) float64 {
	if sel.movedVolume < neededVolume {
		return 0
	}
	spaceEfficiency := min(neededVolume/max(sel.movedVolume, 1), 1.0)
	moveCountFactor := 1.0 - min(float64(len(sel.picked))/20, 0.9)

	var prioritySum int
	for _, idx := range sel.picked {
		prioritySum += candidates[idx].item.Priority
	}
	priorityScore := 1.0
	if len(sel.picked) > 0 {
		priorityScore = 1.0 - float64(prioritySum)/float64(len(sel.picked))/100
	}

	return spaceEfficiency*0.4 + moveCountFactor*0.3 + priorityScore*0.3
}

func (p *Planner) accept(currentScore, neighborScore, temperature float64) bool {
	if neighborScore > currentScore {
		return true
	}
	return p.rng.Float64() < math.Exp((neighborScore-currentScore)/temperature)
}

// movementSteps orders the selected moves open-face first so no move is
// blocked by a later one.
func (p *Planner) movementSteps(candidates []movable, sel *selection) []core.RearrangementStep {
	ordered := append([]int(nil), sel.picked...)
	sort.Slice(ordered, func(i, j int) bool {
		return candidates[ordered[i]].pos.Z < candidates[ordered[j]].pos.Z
	})

	steps := make([]core.RearrangementStep, 0, len(ordered))
	for i, idx := range ordered {
		m := candidates[idx]
		from := core.PositionBox(m.pos, m.dims)
		steps = append(steps, core.RearrangementStep{
			Step:          i + 1,
			Action:        "move",
			ItemID:        m.item.ID,
			FromContainer: m.pos.ContainerID,
			FromPosition:  &from,
		})
	}
	return steps
}
