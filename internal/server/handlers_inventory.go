package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
)

const dateLayout = "2006-01-02"

// itemFromPayload converts a wire item into the domain model.
func itemFromPayload(p *core.ItemPayload) (*core.Item, error) {
	if p.ItemID == "" {
		return nil, core.NewInvalidRequestError("itemId is required", nil)
	}
	if p.Name == "" {
		return nil, core.NewInvalidRequestError("name is required", nil)
	}
	if p.Width <= 0 || p.Depth <= 0 || p.Height <= 0 {
		return nil, core.NewInvalidRequestError("item dimensions must be positive", nil)
	}
	if p.Priority < 1 || p.Priority > 100 {
		return nil, core.NewInvalidRequestError("priority must be between 1 and 100", nil)
	}
	item := &core.Item{
		ID:            p.ItemID,
		Name:          p.Name,
		Width:         p.Width,
		Height:        p.Height,
		Depth:         p.Depth,
		Mass:          p.Mass,
		Priority:      p.Priority,
		UsageLimit:    p.UsageLimit,
		CurrentUsage:  p.CurrentUsage,
		PreferredZone: p.PreferredZone,
		Status:        core.StatusActive,
	}
	if p.Status != "" {
		item.Status = core.ItemStatus(p.Status)
	}
	if p.ExpiryDate != nil && *p.ExpiryDate != "" {
		t, err := parseExpiry(*p.ExpiryDate)
		if err != nil {
			return nil, core.NewInvalidRequestError("expiryDate must be a date or RFC3339 timestamp", err)
		}
		item.ExpiryDate = &t
	}
	return item, nil
}

func parseExpiry(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func itemPayload(it *core.Item) core.ItemPayload {
	p := core.ItemPayload{
		ItemID:        it.ID,
		Name:          it.Name,
		Width:         it.Width,
		Depth:         it.Depth,
		Height:        it.Height,
		Mass:          it.Mass,
		Priority:      it.Priority,
		UsageLimit:    it.UsageLimit,
		CurrentUsage:  it.CurrentUsage,
		PreferredZone: it.PreferredZone,
		Status:        string(it.Status),
	}
	if it.ExpiryDate != nil {
		s := it.ExpiryDate.UTC().Format(dateLayout)
		p.ExpiryDate = &s
	}
	return p
}

// containerFromPayload converts a wire container into the domain model.
func containerFromPayload(p *core.ContainerPayload) (*core.Container, error) {
	if p.ContainerID == "" {
		return nil, core.NewInvalidRequestError("containerId is required", nil)
	}
	if p.Width <= 0 || p.Depth <= 0 || p.Height <= 0 {
		return nil, core.NewInvalidRequestError("container dimensions must be positive", nil)
	}
	face := core.FaceFront
	if p.OpenFace != "" {
		face = core.OpenFace(strings.ToLower(p.OpenFace))
	}
	return &core.Container{
		ID:        p.ContainerID,
		Name:      p.Name,
		Zone:      p.Zone,
		Width:     p.Width,
		Depth:     p.Depth,
		Height:    p.Height,
		OpenFace:  face,
		MaxWeight: p.MaxWeight,
	}, nil
}

func containerPayload(c *core.Container) core.ContainerPayload {
	return core.ContainerPayload{
		ContainerID: c.ID,
		Name:        c.Name,
		Zone:        c.Zone,
		Width:       c.Width,
		Depth:       c.Depth,
		Height:      c.Height,
		OpenFace:    string(c.OpenFace),
		MaxWeight:   c.MaxWeight,
	}
}

// pagination reads skip/limit query parameters with sane bounds.
func pagination(c echo.Context) (skip, limit int) {
	limit = 25
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, inventory.DefaultListLimit)
		}
	}
	if raw := c.QueryParam("skip"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			skip = n
		}
	}
	return skip, limit
}

// CreateItem handles POST /api/items
func (h *Handler) CreateItem(c echo.Context) error {
	var payload core.ItemPayload
	if err := c.Bind(&payload); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	item, err := itemFromPayload(&payload)
	if err != nil {
		return handleError(c, err)
	}

	existing, err := h.deps.Store.GetItem(c.Request().Context(), item.ID)
	if err != nil {
		return handleError(c, err)
	}
	if existing != nil {
		return handleError(c, core.NewConflictError("item already exists"))
	}
	if err := h.deps.Store.CreateItem(c.Request().Context(), item); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, itemPayload(item))
}

// GetItem handles GET /api/items/:itemId
func (h *Handler) GetItem(c echo.Context) error {
	item, err := h.deps.Store.GetItem(c.Request().Context(), c.Param("itemId"))
	if err != nil {
		return handleError(c, err)
	}
	if item == nil {
		return handleError(c, core.NewNotFoundError("item not found"))
	}
	return c.JSON(http.StatusOK, itemPayload(item))
}

// ListItems handles GET /api/items
func (h *Handler) ListItems(c echo.Context) error {
	skip, limit := pagination(c)
	items, err := h.deps.Store.ListItems(c.Request().Context(), skip, limit)
	if err != nil {
		return handleError(c, err)
	}
	out := make([]core.ItemPayload, 0, len(items))
	for _, it := range items {
		out = append(out, itemPayload(it))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": out})
}

// CreateContainer handles POST /api/containers
func (h *Handler) CreateContainer(c echo.Context) error {
	var payload core.ContainerPayload
	if err := c.Bind(&payload); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	container, err := containerFromPayload(&payload)
	if err != nil {
		return handleError(c, err)
	}

	existing, err := h.deps.Store.GetContainer(c.Request().Context(), container.ID)
	if err != nil {
		return handleError(c, err)
	}
	if existing != nil {
		return handleError(c, core.NewConflictError("container already exists"))
	}
	if err := h.deps.Store.CreateContainer(c.Request().Context(), container); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, containerPayload(container))
}

// GetContainer handles GET /api/containers/:containerId
func (h *Handler) GetContainer(c echo.Context) error {
	container, err := h.deps.Store.GetContainer(c.Request().Context(), c.Param("containerId"))
	if err != nil {
		return handleError(c, err)
	}
	if container == nil {
		return handleError(c, core.NewNotFoundError("container not found"))
	}
	return c.JSON(http.StatusOK, containerPayload(container))
}

// ListContainers handles GET /api/containers
func (h *Handler) ListContainers(c echo.Context) error {
	skip, limit := pagination(c)
	containers, err := h.deps.Store.ListContainers(c.Request().Context(), skip, limit)
	if err != nil {
		return handleError(c, err)
	}
	out := make([]core.ContainerPayload, 0, len(containers))
	for _, ct := range containers {
		out = append(out, containerPayload(ct))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"containers": out})
}
