package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cargohold/internal/core"
	"cargohold/internal/observability"
	"cargohold/internal/rearrangement"
)

type rearrangementPlanRequest struct {
	ContainerID string             `json:"containerId"`
	Items       []core.ItemPayload `json:"items"`
}

// ContainerAnalysis handles GET /api/containers/:containerId/analysis
func (h *Handler) ContainerAnalysis(c echo.Context) error {
	ctx := c.Request().Context()
	container, err := h.deps.Store.GetContainer(ctx, c.Param("containerId"))
	if err != nil {
		return handleError(c, err)
	}
	if container == nil {
		return handleError(c, core.NewNotFoundError("container not found"))
	}

	analysis, err := rearrangement.Analyze(ctx, h.deps.States, container)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, analysis)
}

// RearrangementPlan handles POST /api/rearrangement/plan. The listed items
// are candidates, not persisted records; nothing moves until the plan is
// executed through /api/place calls.
func (h *Handler) RearrangementPlan(c echo.Context) error {
	var req rearrangementPlanRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.ContainerID == "" {
		return handleError(c, core.NewInvalidRequestError("containerId is required", nil))
	}
	ctx := c.Request().Context()

	container, err := h.deps.Store.GetContainer(ctx, req.ContainerID)
	if err != nil {
		return handleError(c, err)
	}
	if container == nil {
		return handleError(c, core.NewNotFoundError("container not found"))
	}

	items := make([]*core.Item, 0, len(req.Items))
	for i := range req.Items {
		item, err := itemFromPayload(&req.Items[i])
		if err != nil {
			return handleError(c, err)
		}
		items = append(items, item)
	}

	plan, err := h.deps.Rearrangement.Optimize(ctx, container, items)
	observability.RecordOperation(string(core.OpRearrangement), err)
	if err != nil {
		return handleError(c, err)
	}

	h.record(core.OpRearrangement, "", "", req.ContainerID, map[string]interface{}{
		"itemsToMove": len(plan.ItemsToMove),
		"planned":     plan.Success,
	})

	return c.JSON(http.StatusOK, plan)
}
