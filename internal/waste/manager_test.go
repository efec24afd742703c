package waste

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
)

func newTestManager(t *testing.T) (*Manager, inventory.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := inventory.NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return NewManager(store, nil, nil), store
}

func seedWasteItem(t *testing.T, store inventory.Store, id string, priority int, mass float64, expiry *time.Time) {
	t.Helper()
	err := store.CreateItem(context.Background(), &core.Item{
		ID: id, Name: "item " + id,
		Width: 10, Height: 10, Depth: 10,
		Mass: mass, Priority: priority,
		ExpiryDate: expiry, Status: core.StatusActive,
	})
	if err != nil {
		t.Fatalf("seed item %s: %v", id, err)
	}
}

func TestMarkAsWasteIdempotent(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	seedWasteItem(t, store, "i1", 50, 2, nil)

	if err := m.MarkAsWaste(ctx, "i1", core.ReasonDamaged, now); err != nil {
		t.Fatalf("MarkAsWaste failed: %v", err)
	}
	if err := m.MarkAsWaste(ctx, "i1", core.ReasonDamaged, now.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkAsWaste failed: %v", err)
	}

	records, err := store.UnassignedWasteRecords(ctx)
	if err != nil {
		t.Fatalf("UnassignedWasteRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected a single waste record, got %d", len(records))
	}

	item, _ := store.GetItem(ctx, "i1")
	if item.Status != core.StatusWaste {
		t.Errorf("expected waste status, got %s", item.Status)
	}
}

func TestMarkAsWasteDepletedStatus(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	seedWasteItem(t, store, "i1", 50, 2, nil)
	if err := m.MarkAsWaste(ctx, "i1", core.ReasonDepleted, time.Now()); err != nil {
		t.Fatalf("MarkAsWaste failed: %v", err)
	}

	item, _ := store.GetItem(ctx, "i1")
	if item.Status != core.StatusDepleted {
		t.Errorf("depleted reason should set depleted status, got %s", item.Status)
	}
}

func TestMarkAsWasteUnknownItem(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.MarkAsWaste(context.Background(), "ghost", core.ReasonOther, time.Now())
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != core.ErrorTypeNotFound {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestIdentifySweepsExpiredAndDepleted(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	past := now.AddDate(0, 0, -3)
	future := now.AddDate(0, 0, 30)
	seedWasteItem(t, store, "expired", 50, 2, &past)
	seedWasteItem(t, store, "fresh", 50, 2, &future)

	limit := 2
	err := store.CreateItem(ctx, &core.Item{
		ID: "used-up", Name: "used-up", Width: 5, Height: 5, Depth: 5,
		Priority: 30, UsageLimit: &limit, CurrentUsage: 2, Status: core.StatusActive,
	})
	if err != nil {
		t.Fatalf("seed depleted item: %v", err)
	}

	infos, err := m.Identify(ctx, now)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}

	byID := make(map[string]string)
	for _, info := range infos {
		byID[info.ItemID] = info.Reason
	}
	if byID["expired"] != string(core.ReasonExpired) {
		t.Errorf("expected expired reason, got %q", byID["expired"])
	}
	if byID["used-up"] != string(core.ReasonDepleted) {
		t.Errorf("expected depleted reason, got %q", byID["used-up"])
	}
	if _, ok := byID["fresh"]; ok {
		t.Error("fresh item must not be identified as waste")
	}
}

func TestPlanReturnMissionKnapsack(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	err := store.CreateContainer(ctx, &core.Container{
		ID: "undock", Zone: "Airlock", Width: 100, Depth: 100, Height: 100, OpenFace: core.FaceFront,
	})
	if err != nil {
		t.Fatalf("seed container: %v", err)
	}

	// Three waste items, 6 kg each; a 14 kg limit takes the two best.
	past := now.AddDate(0, 0, -10)
	for _, tc := range []struct {
		id       string
		priority int
		reason   core.WasteReason
	}{
		{"heavy-old", 50, core.ReasonExpired},
		{"medium", 50, core.ReasonDamaged},
		{"light", 10, core.ReasonOther},
	} {
		seedWasteItem(t, store, tc.id, tc.priority, 6, nil)
		if err := m.MarkAsWaste(ctx, tc.id, tc.reason, past); err != nil {
			t.Fatalf("mark waste %s: %v", tc.id, err)
		}
	}

	resp, err := m.PlanReturnMission(ctx, &core.ReturnPlanRequest{
		UndockingContainerID: "undock",
		UndockingDate:        "2026-04-12",
		MaxWeight:            14,
	}, now)
	if err != nil {
		t.Fatalf("PlanReturnMission failed: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}
	if len(resp.ReturnManifest.ReturnItems) != 2 {
		t.Fatalf("expected 2 items under the weight limit, got %d", len(resp.ReturnManifest.ReturnItems))
	}
	if resp.ReturnManifest.ReturnItems[0].ItemID != "heavy-old" {
		t.Errorf("expired waste should rank first, got %s", resp.ReturnManifest.ReturnItems[0].ItemID)
	}
	if resp.ReturnManifest.TotalWeight != 12 {
		t.Errorf("expected total weight 12, got %v", resp.ReturnManifest.TotalWeight)
	}

	mission, err := store.GetReturnMission(ctx, "mission_20260410_undock")
	if err != nil {
		t.Fatalf("GetReturnMission failed: %v", err)
	}
	if mission == nil {
		t.Fatal("mission not created")
	}
	if mission.Status != core.MissionLoading {
		t.Errorf("expected loading status, got %s", mission.Status)
	}
	if mission.CurrentWeight != 12 {
		t.Errorf("expected mission weight 12, got %v", mission.CurrentWeight)
	}

	unassigned, _ := store.UnassignedWasteRecords(ctx)
	if len(unassigned) != 1 {
		t.Errorf("expected 1 record left unassigned, got %d", len(unassigned))
	}
}

func TestPlanReturnMissionMovementSteps(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"undock", "storage"} {
		err := store.CreateContainer(ctx, &core.Container{
			ID: id, Zone: "Z", Width: 100, Depth: 100, Height: 100, OpenFace: core.FaceFront,
		})
		if err != nil {
			t.Fatalf("seed container %s: %v", id, err)
		}
	}

	seedWasteItem(t, store, "w1", 50, 2, nil)
	if err := m.MarkAsWaste(ctx, "w1", core.ReasonDamaged, now); err != nil {
		t.Fatalf("mark waste: %v", err)
	}
	err := store.CreatePosition(ctx, &core.Position{
		ID: "p1", ItemID: "w1", ContainerID: "storage",
		X: 0, Y: 0, Z: 0, Visible: true, Timestamp: now,
	})
	if err != nil {
		t.Fatalf("seed position: %v", err)
	}

	resp, err := m.PlanReturnMission(ctx, &core.ReturnPlanRequest{
		UndockingContainerID: "undock",
		MaxWeight:            100,
	}, now)
	if err != nil {
		t.Fatalf("PlanReturnMission failed: %v", err)
	}
	if len(resp.ReturnPlan) != 1 {
		t.Fatalf("expected 1 movement step, got %+v", resp.ReturnPlan)
	}
	step := resp.ReturnPlan[0]
	if step.FromContainer != "storage" || step.ToContainer != "undock" {
		t.Errorf("unexpected movement: %+v", step)
	}
}

func TestPlanReturnMissionValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.PlanReturnMission(ctx, &core.ReturnPlanRequest{}, time.Now())
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != core.ErrorTypeInvalidRequest {
		t.Errorf("expected invalid request, got %v", err)
	}

	_, err = m.PlanReturnMission(ctx, &core.ReturnPlanRequest{
		UndockingContainerID: "ghost", MaxWeight: 10,
	}, time.Now())
	if !errors.As(err, &apiErr) || apiErr.Type != core.ErrorTypeNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCompleteUndocking(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)

	err := store.CreateContainer(ctx, &core.Container{
		ID: "undock", Zone: "Airlock", Width: 100, Depth: 100, Height: 100, OpenFace: core.FaceFront,
	})
	if err != nil {
		t.Fatalf("seed container: %v", err)
	}

	seedWasteItem(t, store, "w1", 50, 2, nil)
	if err := m.MarkAsWaste(ctx, "w1", core.ReasonDamaged, now.AddDate(0, 0, -2)); err != nil {
		t.Fatalf("mark waste: %v", err)
	}
	err = store.CreatePosition(ctx, &core.Position{
		ID: "p1", ItemID: "w1", ContainerID: "undock",
		X: 0, Y: 0, Z: 0, Visible: true, Timestamp: now,
	})
	if err != nil {
		t.Fatalf("seed position: %v", err)
	}

	if _, err := m.PlanReturnMission(ctx, &core.ReturnPlanRequest{
		UndockingContainerID: "undock", MaxWeight: 100,
	}, now); err != nil {
		t.Fatalf("PlanReturnMission failed: %v", err)
	}

	removed, err := m.CompleteUndocking(ctx, "undock", now)
	if err != nil {
		t.Fatalf("CompleteUndocking failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 item removed, got %d", removed)
	}

	pos, _ := store.ItemPosition(ctx, "w1")
	if pos != nil {
		t.Errorf("position should be gone after undocking, got %+v", pos)
	}

	mission, _ := store.GetReturnMission(ctx, "mission_20260412_undock")
	if mission == nil || mission.Status != core.MissionComplete {
		t.Errorf("mission should be complete, got %+v", mission)
	}

	_, err = m.CompleteUndocking(ctx, "ghost", now)
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != core.ErrorTypeNotFound {
		t.Errorf("expected not found for unknown container, got %v", err)
	}
}
