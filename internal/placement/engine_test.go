package placement

import (
	"context"
	"errors"
	"testing"

	"cargohold/internal/core"
	"cargohold/internal/spatial"
)

type fakeSource struct {
	states map[string]*ContainerState
}

func (f *fakeSource) ContainerState(_ context.Context, containerID string) (*ContainerState, error) {
	if st, ok := f.states[containerID]; ok {
		return st, nil
	}
	return &ContainerState{ContainerID: containerID}, nil
}

func newTestEngine(states map[string]*ContainerState) *Engine {
	return NewEngine(&fakeSource{states: states}, DefaultWeights(), nil)
}

func container(id, zone string, w, d, h float64) *core.Container {
	return &core.Container{ID: id, Zone: zone, Width: w, Depth: d, Height: h, OpenFace: core.FaceFront}
}

func item(id string, priority int, w, h, d float64, zone string) *core.Item {
	return &core.Item{
		ID: id, Name: id, Priority: priority,
		Width: w, Height: h, Depth: d,
		PreferredZone: zone, Status: core.StatusActive,
	}
}

func TestRecommendRejectsEmptyInput(t *testing.T) {
	e := newTestEngine(nil)

	_, err := e.Recommend(context.Background(), nil, []*core.Container{container("c1", "A", 10, 10, 10)})
	if err == nil {
		t.Fatal("expected error for empty items")
	}
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != core.ErrorTypeInvalidRequest {
		t.Errorf("expected invalid request error, got %v", err)
	}

	_, err = e.Recommend(context.Background(), []*core.Item{item("i1", 50, 1, 1, 1, "")}, nil)
	if err == nil {
		t.Fatal("expected error for empty containers")
	}
}

func TestRecommendPrefersPreferredZone(t *testing.T) {
	e := newTestEngine(nil)
	containers := []*core.Container{
		container("other", "Storage", 50, 50, 50),
		container("crew", "Crew Quarters", 50, 50, 50),
	}
	items := []*core.Item{item("i1", 80, 10, 10, 10, "Crew Quarters")}

	plan, err := e.Recommend(context.Background(), items, containers)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(plan.Placements) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(plan.Placements))
	}
	if plan.Placements[0].ContainerID != "crew" {
		t.Errorf("expected placement in preferred zone container, got %s", plan.Placements[0].ContainerID)
	}
}

func TestRecommendFallsBackOutsidePreferredZone(t *testing.T) {
	// The preferred zone container is too small; the item must land elsewhere.
	e := newTestEngine(nil)
	containers := []*core.Container{
		container("tiny", "Crew Quarters", 5, 5, 5),
		container("big", "Storage", 50, 50, 50),
	}
	items := []*core.Item{item("i1", 80, 10, 10, 10, "Crew Quarters")}

	plan, err := e.Recommend(context.Background(), items, containers)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(plan.Placements) != 1 || plan.Placements[0].ContainerID != "big" {
		t.Fatalf("expected fallback placement in big container, got %+v", plan.Placements)
	}
}

func TestRecommendAvoidsOccupiedSpace(t *testing.T) {
	states := map[string]*ContainerState{
		"c1": {
			ContainerID: "c1",
			Boxes: []OccupiedBox{{
				ItemID:   "existing",
				Priority: 50,
				Box: spatial.Box{
					Pos:  spatial.Point{X: 0, Y: 0, Z: 0},
					Dims: core.Dimensions{Width: 10, Height: 20, Depth: 20},
				},
			}},
		},
	}
	e := newTestEngine(states)
	containers := []*core.Container{container("c1", "A", 20, 20, 20)}
	items := []*core.Item{item("i1", 60, 10, 10, 10, "")}

	plan, err := e.Recommend(context.Background(), items, containers)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(plan.Placements) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(plan.Placements))
	}
	p := plan.Placements[0]
	if p.Pos.X < 10 {
		t.Errorf("placement overlaps the occupied region: %+v", p)
	}
}

func TestRecommendOrdersByPriorityThenVolume(t *testing.T) {
	// Container fits exactly one 10-cube at the face; the high priority item
	// should claim the most accessible spot.
	e := newTestEngine(nil)
	containers := []*core.Container{container("c1", "A", 10, 30, 10)}
	items := []*core.Item{
		item("low", 20, 10, 10, 10, ""),
		item("high", 90, 10, 10, 10, ""),
	}

	plan, err := e.Recommend(context.Background(), items, containers)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(plan.Placements) != 2 {
		t.Fatalf("expected 2 placements, got %d", len(plan.Placements))
	}
	if plan.Placements[0].ItemID != "high" {
		t.Errorf("high priority item should be placed first, got %s", plan.Placements[0].ItemID)
	}
	if plan.Placements[0].Pos.Z > plan.Placements[1].Pos.Z {
		t.Errorf("high priority item should sit closer to the open face: %+v", plan.Placements)
	}
}

func TestRecommendSkipsUnplaceableItem(t *testing.T) {
	e := newTestEngine(nil)
	containers := []*core.Container{container("c1", "A", 5, 5, 5)}
	items := []*core.Item{
		item("fits", 50, 3, 3, 3, ""),
		item("huge", 90, 100, 100, 100, ""),
	}

	plan, err := e.Recommend(context.Background(), items, containers)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(plan.Placements) != 1 || plan.Placements[0].ItemID != "fits" {
		t.Fatalf("expected only the fitting item placed, got %+v", plan.Placements)
	}
}

func TestRecommendUsesRotation(t *testing.T) {
	// 10x20x10 item only fits a 20-wide, 10-high container when rotated.
	e := newTestEngine(nil)
	containers := []*core.Container{container("c1", "A", 20, 12, 10)}
	items := []*core.Item{{
		ID: "rot", Name: "rot", Priority: 50,
		Width: 10, Height: 20, Depth: 10,
		Status: core.StatusActive,
	}}

	plan, err := e.Recommend(context.Background(), items, containers)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(plan.Placements) != 1 {
		t.Fatalf("expected rotated placement, got %+v", plan.Placements)
	}
	if plan.Placements[0].Orientation == 0 {
		t.Errorf("expected a non-default orientation, got %+v", plan.Placements[0])
	}
	if plan.Placements[0].Dims.Height > 10 {
		t.Errorf("rotated dims should fit the container height: %+v", plan.Placements[0].Dims)
	}
}

func TestZoneBonusOverride(t *testing.T) {
	w := DefaultWeights()
	w.ZoneBonusOverrides = map[string]float64{"Airlock": 0.9}

	if got := w.zoneBonusFor("Airlock"); got != 0.9 {
		t.Errorf("expected override 0.9, got %v", got)
	}
	if got := w.zoneBonusFor("Storage"); got != 0.5 {
		t.Errorf("expected default 0.5, got %v", got)
	}
}

func TestDecisions(t *testing.T) {
	plan := &Plan{Placements: []Placement{{
		ItemID:      "i1",
		ContainerID: "c1",
		Pos:         spatial.Point{X: 1, Y: 2, Z: 3},
		Dims:        core.Dimensions{Width: 10, Height: 20, Depth: 30},
		Orientation: 2,
	}}}

	decisions := Decisions(plan)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	d := decisions[0]
	if d.Position.StartCoordinates.Width != 1 || d.Position.EndCoordinates.Height != 22 {
		t.Errorf("unexpected coordinates: %+v", d.Position)
	}
	if d.Orientation != 2 {
		t.Errorf("expected orientation 2, got %d", d.Orientation)
	}
}
