// Package server provides the HTTP handlers and server setup for the cargo
// management API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cargohold/internal/auditlog"
	"cargohold/internal/core"
	"cargohold/internal/importexport"
	"cargohold/internal/inventory"
	"cargohold/internal/placement"
	"cargohold/internal/rearrangement"
	"cargohold/internal/retrieval"
	"cargohold/internal/simulation"
	"cargohold/internal/waste"
)

// StateInvalidator drops cached container state after a mutation. The cache
// package's caching source implements it; a nil invalidator is a no-op.
type StateInvalidator interface {
	Invalidate(ctx context.Context, containerID string)
	InvalidateAll(ctx context.Context)
}

// Deps bundles everything the handlers need.
type Deps struct {
	Store         inventory.Store
	Placement     *placement.Engine
	States        placement.StateSource
	Rearrangement *rearrangement.Planner
	Retrieval     *retrieval.Service
	Waste         *waste.Manager
	Simulation    *simulation.Engine
	ImportExport  *importexport.Service
	OpLog         auditlog.LoggerInterface
	LogReader     auditlog.Reader
	Invalidator   StateInvalidator
	Logger        *slog.Logger
}

// Handler holds the HTTP handlers
type Handler struct {
	deps Deps
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.OpLog == nil {
		deps.OpLog = &auditlog.NoopLogger{}
	}
	return &Handler{deps: deps}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// record writes an operation log entry.
func (h *Handler) record(op core.Operation, userID, itemID, containerID string, details map[string]interface{}) {
	e := auditlog.NewEntry(op, time.Now().UTC())
	e.UserID = userID
	e.ItemID = itemID
	e.ContainerID = containerID
	e.Details = details
	h.deps.OpLog.Write(e)
}

// invalidate drops cached state for a container when a cache is wired.
func (h *Handler) invalidate(ctx context.Context, containerID string) {
	if h.deps.Invalidator != nil {
		h.deps.Invalidator.Invalidate(ctx, containerID)
	}
}

func (h *Handler) invalidateAll(ctx context.Context) {
	if h.deps.Invalidator != nil {
		h.deps.Invalidator.InvalidateAll(ctx)
	}
}

// requestTime parses an optional RFC3339 timestamp from a request, falling
// back to the wall clock.
func requestTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, core.NewInvalidRequestError("timestamp must be RFC3339", err)
	}
	return t.UTC(), nil
}

// handleError converts API errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		return c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON())
	}

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
