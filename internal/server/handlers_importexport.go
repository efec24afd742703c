package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cargohold/internal/core"
	"cargohold/internal/observability"
)

func (h *Handler) formFile(c echo.Context) (multipart.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, core.NewInvalidRequestError("multipart field \"file\" is required", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, core.NewInvalidRequestError("could not open uploaded file", err)
	}
	return f, nil
}

// ImportItems handles POST /api/import/items
func (h *Handler) ImportItems(c echo.Context) error {
	f, err := h.formFile(c)
	if err != nil {
		return handleError(c, err)
	}
	defer f.Close()
	ctx := c.Request().Context()

	resp, err := h.deps.ImportExport.ImportItems(ctx, f)
	observability.RecordOperation(string(core.OpImport), err)
	if err != nil {
		return handleError(c, err)
	}
	h.invalidateAll(ctx)

	h.record(core.OpImport, "", "", "", map[string]interface{}{
		"kind":     "items",
		"imported": resp.ItemsImported,
		"errors":   len(resp.Errors),
	})
	return c.JSON(http.StatusOK, resp)
}

// ImportContainers handles POST /api/import/containers
func (h *Handler) ImportContainers(c echo.Context) error {
	f, err := h.formFile(c)
	if err != nil {
		return handleError(c, err)
	}
	defer f.Close()
	ctx := c.Request().Context()

	resp, err := h.deps.ImportExport.ImportContainers(ctx, f)
	observability.RecordOperation(string(core.OpImport), err)
	if err != nil {
		return handleError(c, err)
	}

	h.record(core.OpImport, "", "", "", map[string]interface{}{
		"kind":     "containers",
		"imported": resp.ContainersImported,
		"errors":   len(resp.Errors),
	})
	return c.JSON(http.StatusOK, resp)
}

// ExportArrangement handles GET /api/export/arrangement
func (h *Handler) ExportArrangement(c echo.Context) error {
	ctx := c.Request().Context()

	name := fmt.Sprintf("arrangement_%s.csv", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Response().WriteHeader(http.StatusOK)

	rows, err := h.deps.ImportExport.ExportArrangement(ctx, c.Response())
	observability.RecordOperation(string(core.OpExport), err)
	if err != nil {
		// Headers are already written; the truncated body signals failure.
		h.deps.Logger.Error("arrangement export failed", "error", err)
		return nil
	}

	h.record(core.OpExport, "", "", "", map[string]interface{}{"rows": rows})
	return nil
}
