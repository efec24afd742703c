package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cargohold/internal/core"
	"cargohold/internal/observability"
)

// Simulate handles POST /api/simulate/day
func (h *Handler) Simulate(c echo.Context) error {
	var req core.SimulationRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	ctx := c.Request().Context()

	resp, err := h.deps.Simulation.Advance(ctx, &req, time.Now().UTC())
	observability.RecordOperation(string(core.OpSimulation), err)
	if err != nil {
		return handleError(c, err)
	}
	// Expiry and depletion can change any container's contents.
	h.invalidateAll(ctx)

	h.record(core.OpSimulation, "", "", "", map[string]interface{}{
		"newDate":      resp.NewDate,
		"itemsUsed":    len(resp.Changes.ItemsUsed),
		"itemsExpired": len(resp.Changes.ItemsExpired),
	})

	return c.JSON(http.StatusOK, resp)
}
