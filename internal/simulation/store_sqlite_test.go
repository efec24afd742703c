package simulation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store
}

func TestStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	st, err := store.State(ctx)
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if st != nil {
		t.Fatalf("expected no state initially, got %+v", st)
	}

	date := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	if err := store.SaveState(ctx, &State{CurrentDate: date, Simulating: true}); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	st, err = store.State(ctx)
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if st == nil {
		t.Fatal("expected state after save")
	}
	if !st.CurrentDate.Equal(date) {
		t.Errorf("expected date %v, got %v", date, st.CurrentDate)
	}
	if !st.Simulating {
		t.Error("expected simulating flag set")
	}

	// Saving again upserts the single row.
	later := date.AddDate(0, 0, 3)
	checkpointAt := time.Date(2026, 4, 13, 12, 0, 0, 0, time.UTC)
	if err := store.SaveState(ctx, &State{CurrentDate: later, LastCheckpoint: &checkpointAt}); err != nil {
		t.Fatalf("failed to update state: %v", err)
	}
	st, err = store.State(ctx)
	if err != nil {
		t.Fatalf("failed to reread state: %v", err)
	}
	if !st.CurrentDate.Equal(later) {
		t.Errorf("expected updated date %v, got %v", later, st.CurrentDate)
	}
	if st.Simulating {
		t.Error("expected simulating flag cleared")
	}
	if st.LastCheckpoint == nil {
		t.Fatal("expected last checkpoint timestamp")
	}
}

func TestPendingEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day1 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	now := time.Date(2026, 4, 28, 9, 0, 0, 0, time.UTC)

	events := []*Event{
		{ID: "event_1", Type: EventItemExpiry, Date: day1, CreatedAt: now, Details: map[string]string{"itemId": "item_1"}},
		{ID: "event_2", Type: EventMaintenance, Date: day2, CreatedAt: now},
		{ID: "event_3", Type: EventCustom, Date: day1, CreatedAt: now.Add(time.Minute)},
	}
	for _, ev := range events {
		if err := store.CreateEvent(ctx, ev); err != nil {
			t.Fatalf("failed to create event %s: %v", ev.ID, err)
		}
	}

	pending, err := store.PendingEventsForDate(ctx, day1)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 events on day1, got %d", len(pending))
	}
	if pending[0].Details["itemId"] != "item_1" {
		t.Errorf("expected details to round trip, got %v", pending[0].Details)
	}

	if err := store.MarkEventProcessed(ctx, "event_1"); err != nil {
		t.Fatalf("failed to mark processed: %v", err)
	}
	pending, err = store.PendingEventsForDate(ctx, day1)
	if err != nil {
		t.Fatalf("failed to relist events: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "event_3" {
		t.Fatalf("expected only event_3 pending, got %+v", pending)
	}

	between, err := store.PendingEventsBetween(ctx, day1, day2)
	if err != nil {
		t.Fatalf("failed to list range: %v", err)
	}
	if len(between) != 2 {
		t.Errorf("expected 2 pending events in range, got %d", len(between))
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	c := &Checkpoint{
		ID:        "checkpoint_1",
		CreatedAt: now,
		Label:     "before undocking",
		State:     []byte(`{"date":"2026-06-01"}`),
		Checksum:  "1234567890abcdef",
	}
	if err := store.CreateCheckpoint(ctx, c); err != nil {
		t.Fatalf("failed to create checkpoint: %v", err)
	}

	got, err := store.GetCheckpoint(ctx, "checkpoint_1")
	if err != nil {
		t.Fatalf("failed to get checkpoint: %v", err)
	}
	if got == nil {
		t.Fatal("expected checkpoint")
	}
	if got.Label != "before undocking" || got.Checksum != "1234567890abcdef" {
		t.Errorf("unexpected checkpoint contents: %+v", got)
	}
	if string(got.State) != `{"date":"2026-06-01"}` {
		t.Errorf("unexpected state payload: %s", got.State)
	}

	missing, err := store.GetCheckpoint(ctx, "checkpoint_nope")
	if err != nil {
		t.Fatalf("lookup of missing checkpoint failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing checkpoint")
	}

	second := &Checkpoint{
		ID:        "checkpoint_2",
		CreatedAt: now.Add(time.Hour),
		Label:     "later",
		State:     []byte(`{}`),
		Checksum:  "00",
	}
	if err := store.CreateCheckpoint(ctx, second); err != nil {
		t.Fatalf("failed to create second checkpoint: %v", err)
	}
	list, err := store.ListCheckpoints(ctx)
	if err != nil {
		t.Fatalf("failed to list checkpoints: %v", err)
	}
	if len(list) != 2 || list[0].ID != "checkpoint_2" {
		t.Fatalf("expected newest checkpoint first, got %+v", list)
	}
}
