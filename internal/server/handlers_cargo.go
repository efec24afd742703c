package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cargohold/internal/core"
	"cargohold/internal/observability"
	"cargohold/internal/placement"
)

// Placement handles POST /api/placement. Containers and items named in the
// request are created when missing; the recommendations themselves are not
// persisted as positions. A later POST /api/place confirms each placement.
func (h *Handler) Placement(c echo.Context) error {
	var req core.PlacementRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if len(req.Items) == 0 {
		return handleError(c, core.NewInvalidRequestError("items must not be empty", nil))
	}
	if len(req.Containers) == 0 {
		return handleError(c, core.NewInvalidRequestError("containers must not be empty", nil))
	}
	ctx := c.Request().Context()

	containers := make([]*core.Container, 0, len(req.Containers))
	for i := range req.Containers {
		container, err := containerFromPayload(&req.Containers[i])
		if err != nil {
			return handleError(c, err)
		}
		existing, err := h.deps.Store.GetContainer(ctx, container.ID)
		if err != nil {
			return handleError(c, err)
		}
		if existing == nil {
			if err := h.deps.Store.CreateContainer(ctx, container); err != nil {
				return handleError(c, err)
			}
		} else {
			container = existing
		}
		containers = append(containers, container)
	}

	items := make([]*core.Item, 0, len(req.Items))
	for i := range req.Items {
		item, err := itemFromPayload(&req.Items[i])
		if err != nil {
			return handleError(c, err)
		}
		existing, err := h.deps.Store.GetItem(ctx, item.ID)
		if err != nil {
			return handleError(c, err)
		}
		if existing == nil {
			if err := h.deps.Store.CreateItem(ctx, item); err != nil {
				return handleError(c, err)
			}
		} else {
			item = existing
		}
		items = append(items, item)
	}

	plan, err := h.deps.Placement.Recommend(ctx, items, containers)
	observability.RecordOperation(string(core.OpPlacement), err)
	if err != nil {
		return handleError(c, err)
	}
	observability.RecordPlacements(len(plan.Placements))

	h.record(core.OpPlacement, "", "", "", map[string]interface{}{
		"itemsRequested": len(items),
		"itemsPlaced":    len(plan.Placements),
		"rearrangements": len(plan.Rearrangements),
	})

	return c.JSON(http.StatusOK, core.PlacementResponse{
		Success:        true,
		Placements:     placement.Decisions(plan),
		Rearrangements: plan.Rearrangements,
	})
}

// Search handles GET /api/search
func (h *Handler) Search(c echo.Context) error {
	resp, err := h.deps.Retrieval.Search(c.Request().Context(), c.QueryParam("itemId"), c.QueryParam("itemName"))
	if err != nil {
		return handleError(c, err)
	}
	if resp.Found && resp.Item != nil {
		h.record(core.OpRetrieval, c.QueryParam("userId"), resp.Item.ItemID, resp.Item.ContainerID,
			map[string]interface{}{"action": "search", "found": true})
	}
	return c.JSON(http.StatusOK, resp)
}

// Retrieve handles POST /api/retrieve
func (h *Handler) Retrieve(c echo.Context) error {
	var req core.RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.ItemID == "" {
		return handleError(c, core.NewInvalidRequestError("itemId is required", nil))
	}
	now, err := requestTime(req.Timestamp)
	if err != nil {
		return handleError(c, err)
	}
	ctx := c.Request().Context()

	result, err := h.deps.Retrieval.Retrieve(ctx, req.ItemID, now)
	observability.RecordOperation(string(core.OpRetrieval), err)
	if err != nil {
		return handleError(c, err)
	}
	observability.RecordRetrieval()
	h.invalidate(ctx, result.ContainerID)

	details := map[string]interface{}{"fromContainer": result.ContainerID}
	if result.Depleted {
		details["depleted"] = true
	}
	h.record(core.OpRetrieval, req.UserID, req.ItemID, result.ContainerID, details)

	return c.JSON(http.StatusOK, core.AckResponse{Success: true})
}

// Place handles POST /api/place
func (h *Handler) Place(c echo.Context) error {
	var req core.PlaceRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.ItemID == "" || req.ContainerID == "" {
		return handleError(c, core.NewInvalidRequestError("itemId and containerId are required", nil))
	}
	now, err := requestTime(req.Timestamp)
	if err != nil {
		return handleError(c, err)
	}
	ctx := c.Request().Context()

	pos, err := h.deps.Retrieval.Place(ctx, &req, now)
	observability.RecordOperation(string(core.OpPlacement), err)
	if err != nil {
		return handleError(c, err)
	}
	h.invalidate(ctx, req.ContainerID)

	h.record(core.OpPlacement, req.UserID, req.ItemID, req.ContainerID, map[string]interface{}{
		"toContainer": req.ContainerID,
		"positionId":  pos.ID,
	})

	return c.JSON(http.StatusOK, core.AckResponse{Success: true})
}
