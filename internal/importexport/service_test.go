package importexport

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
)

func newTestService(t *testing.T) (*Service, inventory.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := inventory.NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return NewService(store, nil), store
}

func TestImportItems(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	csvData := `Item ID,Name,Width (cm),Depth (cm),Height (cm),Mass (kg),Priority (1-100),Expiry Date,Usage Limit,Preferred Zone
item_1,Food Pack,10,10,20,5,80,2026-05-20,30,Crew Quarters
item_2,Oxygen Cylinder,15,15,50,30,95,N/A,100,Airlock
item_3,First Aid Kit,20,10,10,2,100,2026-07-10,5,Medical Bay
`
	resp, err := svc.ImportItems(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if resp.ItemsImported != 3 || len(resp.Errors) != 0 {
		t.Fatalf("expected 3 imports and no errors, got %+v", resp)
	}

	item, err := store.GetItem(ctx, "item_1")
	if err != nil {
		t.Fatalf("failed to load item: %v", err)
	}
	if item == nil {
		t.Fatal("item_1 not stored")
	}
	if item.Name != "Food Pack" || item.Priority != 80 || item.PreferredZone != "Crew Quarters" {
		t.Errorf("unexpected item fields: %+v", item)
	}
	if item.ExpiryDate == nil || item.ExpiryDate.Format("2006-01-02") != "2026-05-20" {
		t.Errorf("unexpected expiry date: %v", item.ExpiryDate)
	}
	if item.UsageLimit == nil || *item.UsageLimit != 30 {
		t.Errorf("unexpected usage limit: %v", item.UsageLimit)
	}

	// N/A expiry parses to no expiry
	oxygen, _ := store.GetItem(ctx, "item_2")
	if oxygen == nil || oxygen.ExpiryDate != nil {
		t.Errorf("expected no expiry for item_2, got %+v", oxygen)
	}
}

func TestImportItemsRowErrors(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	csvData := `Item ID,Name,Width (cm),Depth (cm),Height (cm),Mass (kg),Priority (1-100),Expiry Date,Usage Limit,Preferred Zone
item_1,Food Pack,10,10,20,5,80,,,Crew Quarters
item_2,,15,15,50,30,95,,,Airlock
item_3,First Aid Kit,twenty,10,10,2,100,,,Medical Bay
item_4,Notes,10,10,10,1,250,,,Crew Quarters
`
	resp, err := svc.ImportItems(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if resp.ItemsImported != 1 {
		t.Errorf("expected 1 import, got %d", resp.ItemsImported)
	}
	if len(resp.Errors) != 3 {
		t.Fatalf("expected 3 row errors, got %+v", resp.Errors)
	}

	// Row numbers account for the header line
	wantRows := []int{3, 4, 5}
	for i, e := range resp.Errors {
		if e.Row != wantRows[i] {
			t.Errorf("error %d: expected row %d, got %d (%s)", i, wantRows[i], e.Row, e.Message)
		}
	}

	if item, _ := store.GetItem(ctx, "item_2"); item != nil {
		t.Error("invalid row should not be stored")
	}
}

func TestImportItemsUpsert(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	limit := 10
	seed := &core.Item{
		ID: "item_1", Name: "Food Pack", Width: 10, Height: 10, Depth: 10,
		Mass: 5, Priority: 50, UsageLimit: &limit, CurrentUsage: 4,
		Status: core.StatusActive,
	}
	if err := store.CreateItem(ctx, seed); err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}

	csvData := `Item ID,Name,Width (cm),Depth (cm),Height (cm),Mass (kg),Priority (1-100)
item_1,Food Pack v2,12,12,12,6,90
`
	resp, err := svc.ImportItems(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if resp.ItemsImported != 1 {
		t.Fatalf("expected 1 import, got %+v", resp)
	}

	item, _ := store.GetItem(ctx, "item_1")
	if item.Name != "Food Pack v2" || item.Priority != 90 {
		t.Errorf("item was not updated: %+v", item)
	}
	if item.CurrentUsage != 4 {
		t.Errorf("expected usage preserved across import, got %d", item.CurrentUsage)
	}
}

func TestImportContainers(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := store.CreateContainer(ctx, &core.Container{
		ID: "contA", Name: "contA", Zone: "Crew Quarters",
		Width: 100, Depth: 85, Height: 200, OpenFace: core.FaceFront,
	}); err != nil {
		t.Fatalf("failed to seed container: %v", err)
	}

	csvData := `Container ID,Zone,Width(cm),Depth(cm),Height(cm),Open Face,Max Weight (kg)
contA,Crew Quarters,100,85,200,front,500
contB,Airlock,50,85,200,front,
contC,Medical Bay,200,85,200,,300
`
	resp, err := svc.ImportContainers(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	// Existing contA is skipped without an error
	if resp.ContainersImported != 2 || len(resp.Errors) != 0 {
		t.Fatalf("expected 2 new containers, got %+v", resp)
	}

	contC, err := store.GetContainer(ctx, "contC")
	if err != nil {
		t.Fatalf("failed to load container: %v", err)
	}
	if contC.OpenFace != core.FaceFront {
		t.Errorf("expected open face default front, got %s", contC.OpenFace)
	}
	if contC.MaxWeight == nil || *contC.MaxWeight != 300 {
		t.Errorf("unexpected max weight: %v", contC.MaxWeight)
	}

	contB, _ := store.GetContainer(ctx, "contB")
	if contB.MaxWeight != nil {
		t.Errorf("expected no max weight for contB, got %v", contB.MaxWeight)
	}
}

func TestExportArrangement(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := store.CreateContainer(ctx, &core.Container{
		ID: "contA", Name: "contA", Zone: "Storage",
		Width: 100, Depth: 85, Height: 200, OpenFace: core.FaceFront,
	}); err != nil {
		t.Fatalf("failed to seed container: %v", err)
	}
	if err := store.CreateItem(ctx, &core.Item{
		ID: "item_1", Name: "Food Pack", Width: 10, Height: 20, Depth: 30,
		Mass: 5, Priority: 80, Status: core.StatusActive,
	}); err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	if err := store.CreateItem(ctx, &core.Item{
		ID: "item_2", Name: "Unplaced", Width: 5, Height: 5, Depth: 5,
		Mass: 1, Priority: 10, Status: core.StatusActive,
	}); err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	if err := store.CreatePosition(ctx, &core.Position{
		ID: "pos_1", ItemID: "item_1", ContainerID: "contA",
		X: 0, Y: 5, Z: 0, Orientation: 0, Visible: true,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("failed to seed position: %v", err)
	}

	var buf bytes.Buffer
	rows, err := svc.ExportArrangement(ctx, &buf)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 exported row, got %d", rows)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %q", buf.String())
	}
	if lines[0] != `Item ID,Container ID,"Coordinates (W1,D1,H1),(W2,D2,H2)"` {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != `item_1,contA,"(0,5,0),(10,25,30)"` {
		t.Errorf("unexpected row: %s", lines[1])
	}
}
