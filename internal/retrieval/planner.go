// Package retrieval plans how to extract items from containers and records
// retrieval and manual placement operations. Blocking relationships between
// items form a dependency graph; the plan moves blockers aside, pulls the
// target, and puts the blockers back.
package retrieval

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
	"cargohold/internal/spatial"
)

// occupant is an item currently stored in the container under plan.
type occupant struct {
	item *core.Item
	box  spatial.Box
}

// Planner computes retrieval plans from the inventory store.
type Planner struct {
	store inventory.Store
}

// NewPlanner creates a retrieval planner.
func NewPlanner(store inventory.Store) *Planner {
	return &Planner{store: store}
}

// Steps plans the retrieval of an item from a container. A visible item
// yields a single retrieve step. A buried item yields remove/setAside steps
// for every transitive blocker (front-most last), the retrieve step, and
// placeBack steps in reverse order. An unknown item or container yields an
// empty plan.
func (p *Planner) Steps(ctx context.Context, itemID, containerID string) ([]core.RetrievalStep, error) {
	item, err := p.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	container, err := p.store.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if item == nil || container == nil {
		return nil, nil
	}

	occupants, err := p.currentOccupants(ctx, containerID)
	if err != nil {
		return nil, err
	}
	target, ok := occupants[itemID]
	if !ok {
		return nil, nil
	}

	if spatial.Visible(target.box.Pos.Z) {
		return []core.RetrievalStep{{
			Step: 1, Action: "retrieve", ItemID: item.ID, ItemName: item.Name,
		}}, nil
	}

	moveOrder := blockersInMoveOrder(occupants, itemID)

	var steps []core.RetrievalStep
	n := 0
	appendStep := func(action string, it *core.Item) {
		n++
		steps = append(steps, core.RetrievalStep{
			Step: n, Action: action, ItemID: it.ID, ItemName: it.Name,
		})
	}

	for _, id := range moveOrder {
		appendStep("remove", occupants[id].item)
		appendStep("setAside", occupants[id].item)
	}
	appendStep("retrieve", item)
	for i := len(moveOrder) - 1; i >= 0; i-- {
		appendStep("placeBack", occupants[moveOrder[i]].item)
	}
	return steps, nil
}

// currentOccupants maps item ID to its current box in the container. Stale
// position rows (items later moved elsewhere) are dropped.
func (p *Planner) currentOccupants(ctx context.Context, containerID string) (map[string]occupant, error) {
	positions, err := p.store.ContainerPositions(ctx, containerID)
	if err != nil {
		return nil, err
	}

	occupants := make(map[string]occupant)
	seen := make(map[string]bool)
	for _, pos := range positions {
		if seen[pos.ItemID] {
			continue
		}
		seen[pos.ItemID] = true

		current, err := p.store.ItemPosition(ctx, pos.ItemID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.ContainerID != containerID {
			continue
		}
		item, err := p.store.GetItem(ctx, pos.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		occupants[item.ID] = occupant{
			item: item,
			box: spatial.Box{
				Pos:  spatial.Point{X: current.X, Y: current.Y, Z: current.Z},
				Dims: item.OrientedDims(current.Orientation),
			},
		}
	}
	return occupants, nil
}

// blockersInMoveOrder finds every item that transitively blocks the target
// and orders them for removal: a topological sort of the blocking subgraph,
// reversed. On a dependency cycle the blockers come back sorted by ID.
func blockersInMoveOrder(occupants map[string]occupant, targetID string) []string {
	ids := make([]string, 0, len(occupants))
	for id := range occupants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[string]int64, len(ids))
	for i, id := range ids {
		index[id] = int64(i)
	}

	g := simple.NewDirectedGraph()
	for _, id := range ids {
		g.AddNode(simple.Node(index[id]))
	}
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			if spatial.Blocks(occupants[a].box, occupants[b].box) {
				g.SetEdge(g.NewEdge(simple.Node(index[a]), simple.Node(index[b])))
			}
		}
	}

	// BFS over predecessors from the target.
	blocking := make(map[string]bool)
	queue := []string{targetID}
	visited := map[string]bool{targetID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		preds := g.To(index[id])
		for preds.Next() {
			blockerID := ids[preds.Node().ID()]
			if !visited[blockerID] {
				blocking[blockerID] = true
				visited[blockerID] = true
				queue = append(queue, blockerID)
			}
		}
	}
	if len(blocking) == 0 {
		return nil
	}

	// Topological sort of the subgraph induced by the blockers.
	sub := simple.NewDirectedGraph()
	for id := range blocking {
		sub.AddNode(simple.Node(index[id]))
	}
	for a := range blocking {
		for b := range blocking {
			if a == b {
				continue
			}
			if g.HasEdgeFromTo(index[a], index[b]) {
				sub.SetEdge(sub.NewEdge(simple.Node(index[a]), simple.Node(index[b])))
			}
		}
	}

	order, err := topo.Sort(sub)
	if err != nil {
		// Cycle among blockers: fall back to a stable unordered set.
		return sortedKeys(blocking)
	}

	moveOrder := make([]string, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		moveOrder = append(moveOrder, ids[order[i].ID()])
	}
	return moveOrder
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
