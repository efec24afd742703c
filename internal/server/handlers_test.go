package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"cargohold/internal/auditlog"
	"cargohold/internal/cache"
	"cargohold/internal/core"
	"cargohold/internal/importexport"
	"cargohold/internal/inventory"
	"cargohold/internal/placement"
	"cargohold/internal/rearrangement"
	"cargohold/internal/retrieval"
	"cargohold/internal/simulation"
	"cargohold/internal/waste"
)

type testServer struct {
	srv      *Server
	store    inventory.Store
	logStore auditlog.LogStore
}

// newTestServer wires the full handler stack over an in-memory database.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	invStore, err := inventory.NewSQLiteStore(db)
	require.NoError(t, err)
	simStore, err := simulation.NewSQLiteStore(db)
	require.NoError(t, err)
	logStore, err := auditlog.NewSQLiteStore(db, 0)
	require.NoError(t, err)
	logReader, err := auditlog.NewSQLiteReader(db)
	require.NoError(t, err)

	states := cache.NewCachingSource(placement.NewStoreSource(invStore), cache.NewLocalCache(0))
	wasteMgr := waste.NewManager(invStore, retrieval.NewPlanner(invStore), nil)

	srv := New(Deps{
		Store:         invStore,
		Placement:     placement.NewEngine(states, placement.DefaultWeights(), nil),
		States:        states,
		Rearrangement: rearrangement.NewPlanner(invStore, states, nil),
		Retrieval:     retrieval.NewService(invStore, wasteMgr),
		Waste:         wasteMgr,
		Simulation:    simulation.NewEngine(simStore, invStore, wasteMgr, nil),
		ImportExport:  importexport.NewService(invStore, nil),
		OpLog:         &auditlog.NoopLogger{},
		LogReader:     logReader,
		Invalidator:   states,
	}, nil)

	return &testServer{srv: srv, store: invStore, logStore: logStore}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestItemLifecycle(t *testing.T) {
	ts := newTestServer(t)

	payload := core.ItemPayload{
		ItemID: "item_1", Name: "Food Pack",
		Width: 10, Depth: 10, Height: 20,
		Mass: 5, Priority: 80, PreferredZone: "Crew Quarters",
	}
	rec := ts.do(t, http.MethodPost, "/api/items", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate creation conflicts
	rec = ts.do(t, http.MethodPost, "/api/items", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/items/item_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got core.ItemPayload
	decodeJSON(t, rec, &got)
	assert.Equal(t, "Food Pack", got.Name)
	assert.Equal(t, 80, got.Priority)
	assert.Equal(t, "active", got.Status)

	rec = ts.do(t, http.MethodGet, "/api/items/item_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found_error")

	rec = ts.do(t, http.MethodGet, "/api/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []core.ItemPayload `json:"items"`
	}
	decodeJSON(t, rec, &list)
	assert.Len(t, list.Items, 1)
}

func TestItemValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/items", core.ItemPayload{
		ItemID: "item_bad", Name: "Bad", Width: 10, Depth: 10, Height: 10, Priority: 500,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "priority")

	rec = ts.do(t, http.MethodPost, "/api/items", core.ItemPayload{
		ItemID: "item_bad", Name: "Bad", Width: 0, Depth: 10, Height: 10, Priority: 50,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContainerLifecycle(t *testing.T) {
	ts := newTestServer(t)

	maxWeight := 250.0
	payload := core.ContainerPayload{
		ContainerID: "contA", Zone: "Storage Bay",
		Width: 100, Depth: 85, Height: 200,
		OpenFace: "front", MaxWeight: &maxWeight,
	}
	rec := ts.do(t, http.MethodPost, "/api/containers", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/containers", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/containers/contA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got core.ContainerPayload
	decodeJSON(t, rec, &got)
	assert.Equal(t, "Storage Bay", got.Zone)
	require.NotNil(t, got.MaxWeight)
	assert.Equal(t, 250.0, *got.MaxWeight)

	rec = ts.do(t, http.MethodGet, "/api/containers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Containers []core.ContainerPayload `json:"containers"`
	}
	decodeJSON(t, rec, &list)
	assert.Len(t, list.Containers, 1)
}

func TestPlacementRecommendations(t *testing.T) {
	ts := newTestServer(t)

	req := core.PlacementRequest{
		Items: []core.ItemPayload{
			{ItemID: "item_1", Name: "Food Pack", Width: 10, Depth: 10, Height: 20, Priority: 80, PreferredZone: "Storage Bay"},
		},
		Containers: []core.ContainerPayload{
			{ContainerID: "contA", Zone: "Storage Bay", Width: 100, Depth: 85, Height: 200},
		},
	}
	rec := ts.do(t, http.MethodPost, "/api/placement", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp core.PlacementResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Success)
	require.Len(t, resp.Placements, 1)
	assert.Equal(t, "item_1", resp.Placements[0].ItemID)
	assert.Equal(t, "contA", resp.Placements[0].ContainerID)

	// The request upserts the records it names.
	rec = ts.do(t, http.MethodGet, "/api/items/item_1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/containers/contA", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Recommendations are not positions: the item has no location until a
	// place call confirms one.
	rec = ts.do(t, http.MethodGet, "/api/search?itemId=item_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var search core.SearchResponse
	decodeJSON(t, rec, &search)
	assert.True(t, search.Found)
	require.NotNil(t, search.Item)
	assert.Empty(t, search.Item.ContainerID)

	// Empty item list is a client error
	rec = ts.do(t, http.MethodPost, "/api/placement", core.PlacementRequest{
		Containers: req.Containers,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceSearchRetrieve(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	usageLimit := 5
	require.NoError(t, ts.store.CreateContainer(ctx, &core.Container{
		ID: "contA", Zone: "Storage Bay", Width: 100, Depth: 85, Height: 200, OpenFace: core.FaceFront,
	}))
	require.NoError(t, ts.store.CreateItem(ctx, &core.Item{
		ID: "item_1", Name: "Water Filter", Width: 10, Height: 20, Depth: 10,
		Priority: 70, UsageLimit: &usageLimit, Status: core.StatusActive,
	}))

	rec := ts.do(t, http.MethodPost, "/api/place", core.PlaceRequest{
		ItemID:      "item_1",
		UserID:      "astro_1",
		ContainerID: "contA",
		Position: core.BoxPosition{
			StartCoordinates: core.Coordinates{Width: 0, Depth: 0, Height: 0},
			EndCoordinates:   core.Coordinates{Width: 10, Depth: 10, Height: 20},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/search?itemId=item_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var search core.SearchResponse
	decodeJSON(t, rec, &search)
	assert.True(t, search.Found)
	require.NotNil(t, search.Item)
	assert.Equal(t, "contA", search.Item.ContainerID)
	assert.Equal(t, "Storage Bay", search.Item.Zone)
	require.Len(t, search.RetrievalSteps, 1)
	assert.Equal(t, "retrieve", search.RetrievalSteps[0].Action)

	rec = ts.do(t, http.MethodPost, "/api/retrieve", core.RetrieveRequest{
		ItemID: "item_1", UserID: "astro_1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	item, err := ts.store.GetItem(ctx, "item_1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.CurrentUsage)

	// Unknown item is a 404
	rec = ts.do(t, http.MethodPost, "/api/retrieve", core.RetrieveRequest{ItemID: "item_missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Search needs at least one selector
	rec = ts.do(t, http.MethodGet, "/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWasteEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	rec := ts.do(t, http.MethodGet, "/api/waste/identify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var identify core.WasteIdentifyResponse
	decodeJSON(t, rec, &identify)
	assert.True(t, identify.Success)
	assert.Empty(t, identify.WasteItems)

	// An expired item shows up after identification
	expired := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, ts.store.CreateItem(ctx, &core.Item{
		ID: "item_old", Name: "Expired Rations", Width: 10, Height: 10, Depth: 10,
		Priority: 10, ExpiryDate: &expired, Status: core.StatusActive,
	}))

	rec = ts.do(t, http.MethodGet, "/api/waste/identify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &identify)
	require.Len(t, identify.WasteItems, 1)
	assert.Equal(t, "item_old", identify.WasteItems[0].ItemID)
	assert.Equal(t, "expired", identify.WasteItems[0].Reason)

	rec = ts.do(t, http.MethodPost, "/api/waste/complete-undocking", core.UndockingRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateDay(t *testing.T) {
	ts := newTestServer(t)

	days := 1
	rec := ts.do(t, http.MethodPost, "/api/simulate/day", core.SimulationRequest{
		NumOfDays:           &days,
		ItemsToBeUsedPerDay: []core.SimulationItemRef{},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp core.SimulationResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.NewDate)

	// No target at all is rejected
	rec = ts.do(t, http.MethodPost, "/api/simulate/day", core.SimulationRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportAndExport(t *testing.T) {
	ts := newTestServer(t)

	csv := "Item ID,Name,Width (cm),Depth (cm),Height (cm),Mass (kg),Priority (1-100),Expiry Date,Usage Limit,Preferred Zone\n" +
		"item_1,Food Pack,10,10,20,5,80,2027-01-01,30,Crew Quarters\n" +
		"item_2,Oxygen Cylinder,15,15,50,30,95,n/a,100,Airlock\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "items.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/items", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp core.ImportResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.ItemsImported)
	assert.Empty(t, resp.Errors)

	// Missing multipart field is a client error
	rec = ts.do(t, http.MethodPost, "/api/import/items", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	out := ts.do(t, http.MethodGet, "/api/export/arrangement", nil)
	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "text/csv", out.Header().Get("Content-Type"))
	assert.Contains(t, out.Header().Get("Content-Disposition"), "attachment")
	firstLine := strings.SplitN(out.Body.String(), "\n", 2)[0]
	assert.Equal(t, `Item ID,Container ID,"Coordinates (W1,D1,H1),(W2,D2,H2)"`, strings.TrimRight(firstLine, "\r"))
}

func TestLogsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	e1 := auditlog.NewEntry(core.OpRetrieval, now)
	e1.ItemID = "item_1"
	e1.UserID = "astro_1"
	e2 := auditlog.NewEntry(core.OpPlacement, now.Add(time.Second))
	e2.ItemID = "item_2"
	require.NoError(t, ts.logStore.WriteBatch(ctx, []*auditlog.Entry{e1, e2}))

	rec := ts.do(t, http.MethodGet, "/api/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp core.LogsResponse
	decodeJSON(t, rec, &resp)
	assert.Len(t, resp.Logs, 2)

	rec = ts.do(t, http.MethodGet, "/api/logs?actionType=retrieval", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "retrieval", resp.Logs[0].ActionType)
	assert.Equal(t, "item_1", resp.Logs[0].ItemID)

	rec = ts.do(t, http.MethodGet, "/api/logs?actionType=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/logs?startDate=%s", now.Format("2006-01-02")), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.Len(t, resp.Logs, 2)
}

func TestRearrangementEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, ts.store.CreateContainer(ctx, &core.Container{
		ID: "contA", Zone: "Storage Bay", Width: 100, Depth: 100, Height: 100, OpenFace: core.FaceFront,
	}))

	rec := ts.do(t, http.MethodGet, "/api/containers/contA/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var analysis rearrangement.Analysis
	decodeJSON(t, rec, &analysis)
	assert.Equal(t, "contA", analysis.ContainerID)
	assert.Zero(t, analysis.SpaceUtilization)

	rec = ts.do(t, http.MethodGet, "/api/containers/missing/analysis", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/rearrangement/plan", rearrangementPlanRequest{
		ContainerID: "missing",
		Items: []core.ItemPayload{
			{ItemID: "item_new", Name: "New Cargo", Width: 10, Depth: 10, Height: 10, Priority: 50},
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/rearrangement/plan", rearrangementPlanRequest{
		ContainerID: "contA",
		Items: []core.ItemPayload{
			{ItemID: "item_new", Name: "New Cargo", Width: 10, Depth: 10, Height: 10, Priority: 50},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var plan rearrangement.Plan
	decodeJSON(t, rec, &plan)
	assert.False(t, plan.Success)
}
