package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cargohold/internal/core"
	"cargohold/internal/observability"
)

// WasteIdentify handles GET /api/waste/identify
func (h *Handler) WasteIdentify(c echo.Context) error {
	items, err := h.deps.Waste.Identify(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, core.WasteIdentifyResponse{Success: true, WasteItems: items})
}

// WasteReturnPlan handles POST /api/waste/return-plan
func (h *Handler) WasteReturnPlan(c echo.Context) error {
	var req core.ReturnPlanRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	ctx := c.Request().Context()

	resp, err := h.deps.Waste.PlanReturnMission(ctx, &req, time.Now().UTC())
	observability.RecordOperation(string(core.OpDisposal), err)
	if err != nil {
		return handleError(c, err)
	}

	h.record(core.OpDisposal, "", "", req.UndockingContainerID, map[string]interface{}{
		"undockingContainer": req.UndockingContainerID,
		"undockingDate":      req.UndockingDate,
		"returnItems":        len(resp.ReturnManifest.ReturnItems),
	})

	return c.JSON(http.StatusOK, resp)
}

// WasteCompleteUndocking handles POST /api/waste/complete-undocking
func (h *Handler) WasteCompleteUndocking(c echo.Context) error {
	var req core.UndockingRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.UndockingContainerID == "" {
		return handleError(c, core.NewInvalidRequestError("undockingContainerId is required", nil))
	}
	now, err := requestTime(req.Timestamp)
	if err != nil {
		return handleError(c, err)
	}
	ctx := c.Request().Context()

	removed, err := h.deps.Waste.CompleteUndocking(ctx, req.UndockingContainerID, now)
	observability.RecordOperation(string(core.OpDisposal), err)
	if err != nil {
		return handleError(c, err)
	}
	h.invalidate(ctx, req.UndockingContainerID)

	h.record(core.OpDisposal, "", "", req.UndockingContainerID, map[string]interface{}{
		"undockingContainer": req.UndockingContainerID,
		"itemsRemoved":       removed,
	})

	return c.JSON(http.StatusOK, core.UndockingResponse{Success: true, ItemsRemoved: removed})
}
