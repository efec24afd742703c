package retrieval

import (
	"context"
	"time"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
	"cargohold/internal/spatial"
)

// WasteMarker declares an item as waste. The waste package implements it;
// the indirection keeps retrieval free of a dependency on waste planning.
type WasteMarker interface {
	MarkAsWaste(ctx context.Context, itemID string, reason core.WasteReason, now time.Time) error
}

// Service executes search, retrieve, and manual place operations.
type Service struct {
	store   inventory.Store
	planner *Planner
	waste   WasteMarker
}

// NewService creates a retrieval service. waste may be nil in tests.
func NewService(store inventory.Store, waste WasteMarker) *Service {
	return &Service{store: store, planner: NewPlanner(store), waste: waste}
}

// Planner exposes the underlying plan generator.
func (s *Service) Planner() *Planner {
	return s.planner
}

// Search locates an item by ID or name. An unknown item is not an error:
// the response reports found=false. An item without a position is reported
// found with no location.
func (s *Service) Search(ctx context.Context, itemID, itemName string) (*core.SearchResponse, error) {
	if itemID == "" && itemName == "" {
		return nil, core.NewInvalidRequestError("either itemId or itemName must be provided", nil)
	}

	var item *core.Item
	var err error
	if itemID != "" {
		item, err = s.store.GetItem(ctx, itemID)
	} else {
		item, err = s.store.GetItemByName(ctx, itemName)
	}
	if err != nil {
		return nil, err
	}
	if item == nil {
		return &core.SearchResponse{Success: true, Found: false}, nil
	}

	position, err := s.store.ItemPosition(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return &core.SearchResponse{
			Success: true,
			Found:   true,
			Item:    &core.FoundItem{ItemID: item.ID, Name: item.Name},
		}, nil
	}

	container, err := s.store.GetContainer(ctx, position.ContainerID)
	if err != nil {
		return nil, err
	}
	steps, err := s.planner.Steps(ctx, item.ID, position.ContainerID)
	if err != nil {
		return nil, err
	}

	found := &core.FoundItem{
		ItemID:      item.ID,
		Name:        item.Name,
		ContainerID: position.ContainerID,
	}
	if container != nil {
		found.Zone = container.Zone
	}
	box := core.PositionBox(position, item.OrientedDims(position.Orientation))
	found.Position = &box

	return &core.SearchResponse{
		Success:        true,
		Found:          true,
		Item:           found,
		RetrievalSteps: steps,
	}, nil
}

// RetrieveResult reports the effect of a retrieval on the item.
type RetrieveResult struct {
	Item        *core.Item
	ContainerID string
	Depleted    bool
}

// Retrieve records one use of an item. An item that crosses its usage limit
// flips to depleted and is declared waste.
func (s *Service) Retrieve(ctx context.Context, itemID string, now time.Time) (*RetrieveResult, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, core.NewNotFoundError("item not found")
	}

	position, err := s.store.ItemPosition(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	depleted := item.IncrementUsage()
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	if depleted && s.waste != nil {
		if err := s.waste.MarkAsWaste(ctx, item.ID, core.ReasonDepleted, now); err != nil {
			return nil, err
		}
	}

	result := &RetrieveResult{Item: item, Depleted: depleted}
	if position != nil {
		result.ContainerID = position.ContainerID
	}
	return result, nil
}

// Place records a manual placement of an item at explicit coordinates.
// The previous position, if any, becomes history; the new row wins by
// timestamp.
func (s *Service) Place(ctx context.Context, req *core.PlaceRequest, now time.Time) (*core.Position, error) {
	if req.ItemID == "" || req.ContainerID == "" {
		return nil, core.NewInvalidRequestError("itemId and containerId must be provided", nil)
	}

	item, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, core.NewNotFoundError("item not found")
	}
	container, err := s.store.GetContainer(ctx, req.ContainerID)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, core.NewNotFoundError("container not found")
	}

	start := req.Position.StartCoordinates
	position := &core.Position{
		ID:          inventory.NewID("pos"),
		ItemID:      item.ID,
		ContainerID: container.ID,
		X:           start.Width,
		Y:           start.Height,
		Z:           start.Depth,
		Orientation: 0,
		Visible:     spatial.Visible(start.Depth),
		Timestamp:   now,
	}
	if err := s.store.CreatePosition(ctx, position); err != nil {
		return nil, err
	}
	return position, nil
}
