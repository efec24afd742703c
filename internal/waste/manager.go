// Package waste tracks expired and depleted cargo and plans return missions
// that carry it off the station. Item selection for a mission is a greedy
// knapsack over waste priority under weight and volume limits.
package waste

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
)

// StepPlanner generates retrieval plans for buried waste items. The
// retrieval package implements it.
type StepPlanner interface {
	Steps(ctx context.Context, itemID, containerID string) ([]core.RetrievalStep, error)
}

// Manager runs the waste lifecycle.
type Manager struct {
	store   inventory.Store
	planner StepPlanner
	logger  *slog.Logger
}

// NewManager creates a waste manager. planner may be nil; return plans then
// omit retrieval steps.
func NewManager(store inventory.Store, planner StepPlanner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, planner: planner, logger: logger}
}

// Identify sweeps active items for expiry and depletion, marks what it
// finds, and reports every waste item not yet assigned to a mission along
// with its current location.
func (m *Manager) Identify(ctx context.Context, now time.Time) ([]core.WasteItemInfo, error) {
	active, err := m.store.ActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range active {
		switch {
		case item.Expired(now):
			if err := m.MarkAsWaste(ctx, item.ID, core.ReasonExpired, now); err != nil {
				return nil, err
			}
		case item.Depleted():
			if err := m.MarkAsWaste(ctx, item.ID, core.ReasonDepleted, now); err != nil {
				return nil, err
			}
		}
	}

	records, err := m.store.UnassignedWasteRecords(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]core.WasteItemInfo, 0, len(records))
	for _, rec := range records {
		item, err := m.store.GetItem(ctx, rec.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		info := core.WasteItemInfo{
			ItemID: item.ID,
			Name:   item.Name,
			Reason: string(rec.Reason),
		}
		position, err := m.store.ItemPosition(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if position != nil {
			info.ContainerID = position.ContainerID
			box := core.PositionBox(position, item.OrientedDims(position.Orientation))
			info.Position = &box
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// MarkAsWaste flips the item status and records a waste entry. Marking an
// item that already has a waste record only updates the status; the call is
// idempotent.
func (m *Manager) MarkAsWaste(ctx context.Context, itemID string, reason core.WasteReason, now time.Time) error {
	item, err := m.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return core.NewNotFoundError("item not found")
	}

	if reason == core.ReasonDepleted {
		item.Status = core.StatusDepleted
	} else {
		item.Status = core.StatusWaste
	}
	if err := m.store.UpdateItem(ctx, item); err != nil {
		return err
	}

	existing, err := m.store.WasteRecordForItem(ctx, itemID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	rec := &core.WasteRecord{
		ID:        fmt.Sprintf("waste_%s_%s", itemID, now.UTC().Format("20060102150405")),
		ItemID:    itemID,
		Reason:    reason,
		WasteDate: now,
	}
	if err := m.store.CreateWasteRecord(ctx, rec); err != nil {
		return err
	}
	m.logger.Info("item marked as waste", "item_id", itemID, "reason", string(reason))
	return nil
}

// wasteCandidate is an unassigned waste record joined with its item and
// scored for return selection.
type wasteCandidate struct {
	item     *core.Item
	record   *core.WasteRecord
	position *core.Position
	score    int
	weight   float64
	volume   float64
}

// PlanReturnMission selects waste for an undocking container, builds the
// movement and retrieval plans, and assigns the selected records to the
// mission. The mission ID is derived from today's date and the container,
// so re-planning the same undocking reuses the mission.
func (m *Manager) PlanReturnMission(ctx context.Context, req *core.ReturnPlanRequest, now time.Time) (*core.ReturnPlanResponse, error) {
	if req.UndockingContainerID == "" {
		return nil, core.NewInvalidRequestError("undockingContainerId must be provided", nil)
	}
	container, err := m.store.GetContainer(ctx, req.UndockingContainerID)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, core.NewNotFoundError("undocking container not found")
	}

	scheduled, err := parseDate(req.UndockingDate, now)
	if err != nil {
		return nil, core.NewInvalidRequestError("undockingDate must be an ISO date", err)
	}
	maxVolume := container.Volume()

	mission, err := m.getOrCreateMission(ctx, container.ID, scheduled, req.MaxWeight, maxVolume, now)
	if err != nil {
		return nil, err
	}

	candidates, err := m.unassignedCandidates(ctx, now)
	if err != nil {
		return nil, err
	}
	selected, totalWeight, totalVolume := selectForReturn(candidates, req.MaxWeight, maxVolume)

	resp := &core.ReturnPlanResponse{
		Success: true,
		ReturnManifest: core.ReturnManifest{
			UndockingContainerID: container.ID,
			UndockingDate:        scheduled.Format("2006-01-02"),
			TotalWeight:          totalWeight,
			TotalVolume:          totalVolume,
		},
	}

	step := 0
	for _, cand := range selected {
		if err := m.store.AssignWasteToMission(ctx, cand.record.ID, mission.ID); err != nil {
			return nil, err
		}
		resp.ReturnManifest.ReturnItems = append(resp.ReturnManifest.ReturnItems, core.ReturnManifestItem{
			ItemID: cand.item.ID,
			Name:   cand.item.Name,
			Reason: string(cand.record.Reason),
		})

		if cand.position == nil || cand.position.ContainerID == container.ID {
			continue
		}
		step++
		resp.ReturnPlan = append(resp.ReturnPlan, core.ReturnPlanStep{
			Step:          step,
			ItemID:        cand.item.ID,
			ItemName:      cand.item.Name,
			FromContainer: cand.position.ContainerID,
			ToContainer:   container.ID,
		})
		if !cand.position.Visible && m.planner != nil {
			steps, err := m.planner.Steps(ctx, cand.item.ID, cand.position.ContainerID)
			if err != nil {
				return nil, err
			}
			resp.RetrievalSteps = append(resp.RetrievalSteps, steps...)
		}
	}

	mission.CurrentWeight = totalWeight
	mission.CurrentVolume = totalVolume
	mission.Status = core.MissionLoading
	if err := m.store.UpdateReturnMission(ctx, mission); err != nil {
		return nil, err
	}

	m.logger.Info("return mission planned",
		"mission_id", mission.ID,
		"items", len(selected),
		"weight", totalWeight,
		"volume", totalVolume)
	return resp, nil
}

// CompleteUndocking removes every item stored in the undocking container
// and marks the missions their waste records belong to as complete.
func (m *Manager) CompleteUndocking(ctx context.Context, containerID string, now time.Time) (int, error) {
	container, err := m.store.GetContainer(ctx, containerID)
	if err != nil {
		return 0, err
	}
	if container == nil {
		return 0, core.NewNotFoundError("undocking container not found")
	}

	positions, err := m.store.ContainerPositions(ctx, containerID)
	if err != nil {
		return 0, err
	}

	removed := make(map[string]bool)
	missions := make(map[string]bool)
	for _, pos := range positions {
		if err := m.store.DeletePosition(ctx, pos.ID); err != nil {
			return 0, err
		}
		if removed[pos.ItemID] {
			continue
		}
		removed[pos.ItemID] = true

		rec, err := m.store.WasteRecordForItem(ctx, pos.ItemID)
		if err != nil {
			return 0, err
		}
		if rec != nil && rec.ReturnMissionID != "" {
			missions[rec.ReturnMissionID] = true
		}
	}

	for missionID := range missions {
		mission, err := m.store.GetReturnMission(ctx, missionID)
		if err != nil {
			return 0, err
		}
		if mission == nil {
			continue
		}
		mission.Status = core.MissionComplete
		if err := m.store.UpdateReturnMission(ctx, mission); err != nil {
			return 0, err
		}
	}

	m.logger.Info("undocking complete",
		"container_id", containerID, "items_removed", len(removed))
	return len(removed), nil
}

func (m *Manager) getOrCreateMission(ctx context.Context, containerID string, scheduled time.Time, maxWeight, maxVolume float64, now time.Time) (*core.ReturnMission, error) {
	missionID := fmt.Sprintf("mission_%s_%s", now.UTC().Format("20060102"), containerID)
	mission, err := m.store.GetReturnMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if mission != nil {
		return mission, nil
	}
	mission = &core.ReturnMission{
		ID:            missionID,
		ScheduledDate: scheduled,
		MaxWeight:     maxWeight,
		MaxVolume:     maxVolume,
		Status:        core.MissionPlanned,
	}
	if err := m.store.CreateReturnMission(ctx, mission); err != nil {
		return nil, err
	}
	return mission, nil
}

func (m *Manager) unassignedCandidates(ctx context.Context, now time.Time) ([]wasteCandidate, error) {
	records, err := m.store.UnassignedWasteRecords(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]wasteCandidate, 0, len(records))
	for _, rec := range records {
		item, err := m.store.GetItem(ctx, rec.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		position, err := m.store.ItemPosition(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, wasteCandidate{
			item:     item,
			record:   rec,
			position: position,
			score:    wasteScore(item, rec, now),
			weight:   item.Mass,
			volume:   item.Volume(),
		})
	}
	return candidates, nil
}

// wasteScore ranks a waste item for return: base item priority, plus two
// points per day it has been waste, plus a flat bonus for expired goods.
func wasteScore(item *core.Item, rec *core.WasteRecord, now time.Time) int {
	age := int(now.Sub(rec.WasteDate).Hours() / 24)
	if age < 0 {
		age = 0
	}
	score := item.Priority + age*2
	if rec.Reason == core.ReasonExpired {
		score += 100
	}
	return score
}

// selectForReturn is a greedy knapsack: highest score first, skipping
// anything that would break the weight or volume limit.
func selectForReturn(candidates []wasteCandidate, maxWeight, maxVolume float64) ([]wasteCandidate, float64, float64) {
	sorted := make([]wasteCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	var selected []wasteCandidate
	var totalWeight, totalVolume float64
	for _, c := range sorted {
		if totalWeight+c.weight > maxWeight || totalVolume+c.volume > maxVolume {
			continue
		}
		selected = append(selected, c)
		totalWeight += c.weight
		totalVolume += c.volume
	}
	return selected, totalWeight, totalVolume
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
