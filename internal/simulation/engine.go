package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
)

// WasteMarker declares an item as waste; the waste package implements it.
type WasteMarker interface {
	MarkAsWaste(ctx context.Context, itemID string, reason core.WasteReason, now time.Time) error
}

// Engine advances the simulated station clock.
type Engine struct {
	store  Store
	inv    inventory.Store
	waste  WasteMarker
	logger *slog.Logger
}

// NewEngine creates a simulation engine.
func NewEngine(store Store, inv inventory.Store, waste WasteMarker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, inv: inv, waste: waste, logger: logger}
}

// CurrentDate returns the persisted simulation date, initializing it to the
// wall clock date on first use.
func (e *Engine) CurrentDate(ctx context.Context, now time.Time) (time.Time, error) {
	st, err := e.store.State(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if st != nil {
		return st.CurrentDate, nil
	}
	date := truncateToDay(now)
	if err := e.store.SaveState(ctx, &State{CurrentDate: date}); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

// Advance moves the simulation clock forward. The request names either a
// day count or a target date; each simulated day applies the per-day item
// usage and processes that day's scheduled events. After advancing, an
// expiry sweep declares newly expired items waste and a checkpoint of the
// resulting state is stored. A failure anywhere after the in-progress flag
// is raised restores the starting date and clears the flag, so a retry
// replays the same window against clean state.
func (e *Engine) Advance(ctx context.Context, req *core.SimulationRequest, now time.Time) (*core.SimulationResponse, error) {
	start, err := e.CurrentDate(ctx, now)
	if err != nil {
		return nil, err
	}

	days, err := resolveDays(req, start)
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveState(ctx, &State{CurrentDate: start, Simulating: true}); err != nil {
		return nil, err
	}

	resp, err := e.advance(ctx, start, days, req.ItemsToBeUsedPerDay, now)
	if err != nil {
		if saveErr := e.store.SaveState(ctx, &State{CurrentDate: start}); saveErr != nil {
			e.logger.Error("failed to restore simulation date", "error", saveErr)
		}
		return nil, err
	}
	return resp, nil
}

// advance performs the day loop, expiry sweep, checkpoint, and final state
// save. The final save clears the in-progress flag; the caller handles
// error-path state restoration.
func (e *Engine) advance(ctx context.Context, start time.Time, days int, usage []core.SimulationItemRef, now time.Time) (*core.SimulationResponse, error) {
	changes, current, err := e.run(ctx, start, days, usage, now)
	if err != nil {
		return nil, err
	}

	expired, err := e.expirySweep(ctx, current)
	if err != nil {
		return nil, err
	}
	changes.ItemsExpired = expired

	checkpointAt := now
	if _, err := e.checkpoint(ctx, fmt.Sprintf("auto checkpoint after %d day advance", days), current, checkpointAt); err != nil {
		return nil, err
	}
	if err := e.store.SaveState(ctx, &State{CurrentDate: current, LastCheckpoint: &checkpointAt}); err != nil {
		return nil, err
	}

	e.logger.Info("simulation advanced",
		"days", days, "new_date", current.Format(dateLayout))
	return &core.SimulationResponse{
		Success: true,
		NewDate: current.Format(dateLayout),
		Changes: *changes,
	}, nil
}

// run processes the day loop and returns the accumulated changes and the
// final date.
func (e *Engine) run(ctx context.Context, start time.Time, days int, usage []core.SimulationItemRef, now time.Time) (*core.SimulationChanges, time.Time, error) {
	changes := &core.SimulationChanges{}
	used := make(map[string]*core.SimulationItemResult)
	current := start

	for day := 0; day < days; day++ {
		if err := e.processEvents(ctx, current, now); err != nil {
			return nil, start, err
		}

		for _, ref := range usage {
			item, err := e.resolveItem(ctx, ref)
			if err != nil {
				return nil, start, err
			}
			if item == nil || item.Status != core.StatusActive {
				continue
			}
			depleted := item.IncrementUsage()
			if err := e.inv.UpdateItem(ctx, item); err != nil {
				return nil, start, err
			}
			result := &core.SimulationItemResult{
				ItemID:        item.ID,
				Name:          item.Name,
				RemainingUses: item.RemainingUses(),
			}
			used[item.ID] = result
			if depleted {
				if e.waste != nil {
					if err := e.waste.MarkAsWaste(ctx, item.ID, core.ReasonDepleted, now); err != nil {
						return nil, start, err
					}
				}
				changes.ItemsDepletedToday = append(changes.ItemsDepletedToday, core.SimulationItemResult{
					ItemID: item.ID, Name: item.Name,
				})
			}
		}
		current = current.AddDate(0, 0, 1)
	}

	for _, ref := range usage {
		id := ref.ItemID
		if id == "" {
			// Resolve name references once more for stable output order.
			if item, err := e.resolveItem(ctx, ref); err == nil && item != nil {
				id = item.ID
			}
		}
		if r, ok := used[id]; ok {
			changes.ItemsUsed = append(changes.ItemsUsed, *r)
			delete(used, id)
		}
	}
	return changes, current, nil
}

// processEvents handles every pending event scheduled for the given day.
func (e *Engine) processEvents(ctx context.Context, date, now time.Time) error {
	events, err := e.store.PendingEventsForDate(ctx, date)
	if err != nil {
		return err
	}
	for _, ev := range events {
		switch ev.Type {
		case EventItemExpiry:
			if itemID := ev.Details["itemId"]; itemID != "" && e.waste != nil {
				item, err := e.inv.GetItem(ctx, itemID)
				if err != nil {
					return err
				}
				if item != nil && item.Status == core.StatusActive {
					if err := e.waste.MarkAsWaste(ctx, itemID, core.ReasonExpired, now); err != nil {
						return err
					}
				}
			}
		case EventReturnMission:
			if missionID := ev.Details["missionId"]; missionID != "" {
				mission, err := e.inv.GetReturnMission(ctx, missionID)
				if err != nil {
					return err
				}
				if mission != nil {
					mission.Status = core.MissionLoading
					if err := e.inv.UpdateReturnMission(ctx, mission); err != nil {
						return err
					}
				}
			}
		case EventMaintenance, EventCustom:
			e.logger.Info("scheduled event", "event_id", ev.ID, "type", string(ev.Type))
		}
		if err := e.store.MarkEventProcessed(ctx, ev.ID); err != nil {
			return err
		}
	}
	return nil
}

// expirySweep marks every active item expired as of the given date.
func (e *Engine) expirySweep(ctx context.Context, date time.Time) ([]core.SimulationItemResult, error) {
	active, err := e.inv.ActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	var expired []core.SimulationItemResult
	for _, item := range active {
		if !item.Expired(date) {
			continue
		}
		if e.waste != nil {
			if err := e.waste.MarkAsWaste(ctx, item.ID, core.ReasonExpired, date); err != nil {
				return nil, err
			}
		}
		expired = append(expired, core.SimulationItemResult{ItemID: item.ID, Name: item.Name})
	}
	return expired, nil
}

func (e *Engine) resolveItem(ctx context.Context, ref core.SimulationItemRef) (*core.Item, error) {
	if ref.ItemID != "" {
		return e.inv.GetItem(ctx, ref.ItemID)
	}
	if ref.Name != "" {
		return e.inv.GetItemByName(ctx, ref.Name)
	}
	return nil, nil
}

// ScheduleEvent records a future event.
func (e *Engine) ScheduleEvent(ctx context.Context, typ EventType, date time.Time, details map[string]string, now time.Time) (*Event, error) {
	ev := &Event{
		ID:        "event_" + uuid.NewString()[:8],
		Type:      typ,
		Date:      truncateToDay(date),
		CreatedAt: now,
		Details:   details,
	}
	if err := e.store.CreateEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ScheduledEvents lists pending events in the date range.
func (e *Engine) ScheduledEvents(ctx context.Context, start, end time.Time) ([]*Event, error) {
	return e.store.PendingEventsBetween(ctx, start, end)
}

// checkpointState is the serialized content of a checkpoint.
type checkpointState struct {
	Date      string `json:"date"`
	Timestamp string `json:"timestamp"`
}

// checkpoint stores a snapshot of the simulation state with an xxhash
// checksum for integrity verification on restore.
func (e *Engine) checkpoint(ctx context.Context, label string, date, now time.Time) (*Checkpoint, error) {
	raw, err := json.Marshal(checkpointState{
		Date:      date.Format(dateLayout),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	c := &Checkpoint{
		ID:        "checkpoint_" + uuid.NewString()[:8],
		CreatedAt: now,
		Label:     label,
		State:     raw,
		Checksum:  fmt.Sprintf("%016x", xxhash.Sum64(raw)),
	}
	if err := e.store.CreateCheckpoint(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCheckpoint stores a labeled snapshot of the current state.
func (e *Engine) CreateCheckpoint(ctx context.Context, label string, now time.Time) (*Checkpoint, error) {
	date, err := e.CurrentDate(ctx, now)
	if err != nil {
		return nil, err
	}
	return e.checkpoint(ctx, label, date, now)
}

// RestoreCheckpoint rewinds the simulation date to a stored checkpoint. A
// checksum mismatch means the stored state was corrupted and is rejected.
func (e *Engine) RestoreCheckpoint(ctx context.Context, id string) (time.Time, error) {
	c, err := e.store.GetCheckpoint(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if c == nil {
		return time.Time{}, core.NewNotFoundError("checkpoint not found")
	}
	if sum := fmt.Sprintf("%016x", xxhash.Sum64(c.State)); sum != c.Checksum {
		return time.Time{}, core.NewConflictError("checkpoint state failed checksum verification")
	}

	var st checkpointState
	if err := json.Unmarshal(c.State, &st); err != nil {
		return time.Time{}, core.NewStorageError("checkpoint state is not decodable", err)
	}
	date, err := time.Parse(dateLayout, st.Date)
	if err != nil {
		return time.Time{}, core.NewStorageError("checkpoint date is invalid", err)
	}
	if err := e.store.SaveState(ctx, &State{CurrentDate: date, LastCheckpoint: &c.CreatedAt}); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

// Checkpoints lists stored checkpoints, newest first.
func (e *Engine) Checkpoints(ctx context.Context) ([]*Checkpoint, error) {
	return e.store.ListCheckpoints(ctx)
}

// resolveDays converts a simulation request into a day count.
func resolveDays(req *core.SimulationRequest, current time.Time) (int, error) {
	if req.NumOfDays != nil {
		if *req.NumOfDays < 1 {
			return 0, core.NewInvalidRequestError("numOfDays must be at least 1", nil)
		}
		return *req.NumOfDays, nil
	}
	if req.ToTimestamp == "" {
		return 0, core.NewInvalidRequestError("either numOfDays or toTimestamp must be provided", nil)
	}
	target, err := parseDate(req.ToTimestamp)
	if err != nil {
		return 0, core.NewInvalidRequestError("toTimestamp must be an ISO date", err)
	}
	days := int(truncateToDay(target).Sub(truncateToDay(current)).Hours() / 24)
	if days < 1 {
		return 0, core.NewInvalidRequestError("target date must be in the future", nil)
	}
	return days, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
