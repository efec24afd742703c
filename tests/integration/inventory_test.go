//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
)

func newInventoryStore(t *testing.T) inventory.Store {
	t.Helper()
	store, err := inventory.NewPostgreSQLStore(GetPostgreSQLPool())
	require.NoError(t, err, "failed to create inventory store")
	return store
}

func TestPostgreSQLContainerRoundTrip(t *testing.T) {
	ctx := GetTestContext()
	store := newInventoryStore(t)

	maxWeight := 250.0
	cont := &core.Container{
		ID:        "int_contA",
		Name:      "Rack A",
		Zone:      "Storage Bay",
		Width:     100,
		Depth:     85,
		Height:    200,
		OpenFace:  core.FaceFront,
		MaxWeight: &maxWeight,
	}
	require.NoError(t, store.CreateContainer(ctx, cont))

	got, err := store.GetContainer(ctx, "int_contA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Rack A", got.Name)
	assert.Equal(t, "Storage Bay", got.Zone)
	assert.Equal(t, core.FaceFront, got.OpenFace)
	require.NotNil(t, got.MaxWeight)
	assert.Equal(t, 250.0, *got.MaxWeight)

	// Duplicate IDs violate the primary key.
	err = store.CreateContainer(ctx, cont)
	assert.Error(t, err)

	missing, err := store.GetContainer(ctx, "int_contNope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byZone, err := store.ContainersByZone(ctx, "Storage Bay")
	require.NoError(t, err)
	found := false
	for _, c := range byZone {
		if c.ID == "int_contA" {
			found = true
		}
	}
	assert.True(t, found, "zone query should include int_contA")
}

func TestPostgreSQLItemRoundTrip(t *testing.T) {
	ctx := GetTestContext()
	store := newInventoryStore(t)

	expiry := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	limit := 5
	item := &core.Item{
		ID:            "int_item1",
		Name:          "Food Packet",
		Width:         10,
		Height:        10,
		Depth:         20,
		Mass:          5,
		Priority:      80,
		ExpiryDate:    &expiry,
		UsageLimit:    &limit,
		PreferredZone: "Crew Quarters",
		Status:        core.StatusActive,
	}
	require.NoError(t, store.CreateItem(ctx, item))

	got, err := store.GetItem(ctx, "int_item1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Food Packet", got.Name)
	assert.Equal(t, 80, got.Priority)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, "2026-09-15", got.ExpiryDate.Format("2006-01-02"))
	require.NotNil(t, got.UsageLimit)
	assert.Equal(t, 5, *got.UsageLimit)
	assert.Equal(t, core.StatusActive, got.Status)

	byName, err := store.GetItemByName(ctx, "Food Packet")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "int_item1", byName.ID)

	got.CurrentUsage = 5
	got.Status = core.StatusDepleted
	require.NoError(t, store.UpdateItem(ctx, got))

	updated, err := store.GetItem(ctx, "int_item1")
	require.NoError(t, err)
	assert.Equal(t, 5, updated.CurrentUsage)
	assert.Equal(t, core.StatusDepleted, updated.Status)

	// Depleted items drop out of the active listing.
	active, err := store.ActiveItems(ctx)
	require.NoError(t, err)
	for _, it := range active {
		assert.NotEqual(t, "int_item1", it.ID)
	}

	err = store.UpdateItem(ctx, &core.Item{ID: "int_itemNope", Name: "x", Status: core.StatusActive})
	assert.Error(t, err)
}

func TestPostgreSQLPositionLatestWins(t *testing.T) {
	ctx := GetTestContext()
	store := newInventoryStore(t)

	require.NoError(t, store.CreateContainer(ctx, &core.Container{
		ID: "int_contPos", Zone: "Storage Bay", Width: 100, Depth: 85, Height: 200,
		OpenFace: core.FaceFront,
	}))
	require.NoError(t, store.CreateItem(ctx, &core.Item{
		ID: "int_itemPos", Name: "Sample Kit", Width: 10, Height: 10, Depth: 10,
		Priority: 50, Status: core.StatusActive,
	}))

	base := time.Now().UTC().Add(-time.Hour)
	older := &core.Position{
		ID: "int_pos_old", ItemID: "int_itemPos", ContainerID: "int_contPos",
		X: 0, Y: 0, Z: 0, Visible: true, Timestamp: base,
	}
	newer := &core.Position{
		ID: "int_pos_new", ItemID: "int_itemPos", ContainerID: "int_contPos",
		X: 20, Y: 0, Z: 10, Visible: false, Timestamp: base.Add(30 * time.Minute),
	}
	require.NoError(t, store.CreatePosition(ctx, older))
	require.NoError(t, store.CreatePosition(ctx, newer))

	// The most recent timestamp is the item's current position.
	current, err := store.ItemPosition(ctx, "int_itemPos")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "int_pos_new", current.ID)
	assert.Equal(t, 20.0, current.X)
	assert.False(t, current.Visible)

	positions, err := store.ContainerPositions(ctx, "int_contPos")
	require.NoError(t, err)
	assert.Len(t, positions, 2)

	require.NoError(t, store.DeletePosition(ctx, "int_pos_new"))
	current, err = store.ItemPosition(ctx, "int_itemPos")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "int_pos_old", current.ID)
}

func TestPostgreSQLWasteAndMissions(t *testing.T) {
	ctx := GetTestContext()
	store := newInventoryStore(t)

	require.NoError(t, store.CreateItem(ctx, &core.Item{
		ID: "int_itemWaste", Name: "Expired Ration", Width: 5, Height: 5, Depth: 5,
		Priority: 10, Status: core.StatusWaste,
	}))

	waste := &core.WasteRecord{
		ID:        "int_waste1",
		ItemID:    "int_itemWaste",
		Reason:    core.ReasonExpired,
		WasteDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Notes:     "freezer fault",
	}
	require.NoError(t, store.CreateWasteRecord(ctx, waste))

	got, err := store.WasteRecordForItem(ctx, "int_itemWaste")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.ReasonExpired, got.Reason)
	assert.Empty(t, got.ReturnMissionID)

	unassigned, err := store.UnassignedWasteRecords(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(unassigned))
	for _, w := range unassigned {
		ids = append(ids, w.ID)
	}
	assert.Contains(t, ids, "int_waste1")

	mission := &core.ReturnMission{
		ID:            "int_mission1",
		ScheduledDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		MaxWeight:     500,
		MaxVolume:     2000,
		Status:        core.MissionPlanned,
	}
	require.NoError(t, store.CreateReturnMission(ctx, mission))
	require.NoError(t, store.AssignWasteToMission(ctx, "int_waste1", "int_mission1"))

	got, err = store.WasteRecordForItem(ctx, "int_itemWaste")
	require.NoError(t, err)
	assert.Equal(t, "int_mission1", got.ReturnMissionID)

	// Assigned records leave the unassigned listing.
	unassigned, err = store.UnassignedWasteRecords(ctx)
	require.NoError(t, err)
	for _, w := range unassigned {
		assert.NotEqual(t, "int_waste1", w.ID)
	}

	mission.CurrentWeight = 12.5
	mission.Status = core.MissionLoading
	require.NoError(t, store.UpdateReturnMission(ctx, mission))

	active, err := store.ActiveReturnMissions(ctx)
	require.NoError(t, err)
	var loaded *core.ReturnMission
	for _, m := range active {
		if m.ID == "int_mission1" {
			loaded = m
		}
	}
	require.NotNil(t, loaded, "loading mission should still be active")
	assert.Equal(t, 12.5, loaded.CurrentWeight)

	loaded.Status = core.MissionComplete
	require.NoError(t, store.UpdateReturnMission(ctx, loaded))

	active, err = store.ActiveReturnMissions(ctx)
	require.NoError(t, err)
	for _, m := range active {
		assert.NotEqual(t, "int_mission1", m.ID)
	}
}
