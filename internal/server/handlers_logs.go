package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"cargohold/internal/auditlog"
	"cargohold/internal/core"
)

// Logs handles GET /api/logs
func (h *Handler) Logs(c echo.Context) error {
	params := auditlog.LogQueryParams{
		ItemID:        c.QueryParam("itemId"),
		UserID:        c.QueryParam("userId"),
		ContainerID:   c.QueryParam("containerId"),
		DetailsFilter: c.QueryParam("details"),
	}
	if raw := c.QueryParam("actionType"); raw != "" {
		op, ok := core.ParseOperation(raw)
		if !ok {
			valid := make([]string, 0, len(core.Operations))
			for _, o := range core.Operations {
				valid = append(valid, string(o))
			}
			msg := "unknown actionType, valid values: " + strings.Join(valid, ", ")
			return handleError(c, core.NewInvalidRequestError(msg, nil))
		}
		params.Operation = op
	}
	if raw := c.QueryParam("startDate"); raw != "" {
		t, err := parseLogDate(raw)
		if err != nil {
			return handleError(c, core.NewInvalidRequestError("startDate must be a date or RFC3339 timestamp", err))
		}
		params.StartDate = t
	}
	if raw := c.QueryParam("endDate"); raw != "" {
		t, err := parseLogDate(raw)
		if err != nil {
			return handleError(c, core.NewInvalidRequestError("endDate must be a date or RFC3339 timestamp", err))
		}
		params.EndDate = t
	}
	skip, limit := pagination(c)
	params.Offset = skip
	params.Limit = limit

	result, err := h.deps.LogReader.GetLogs(c.Request().Context(), params)
	if err != nil {
		return handleError(c, err)
	}

	logs := make([]core.LogRecord, 0, len(result.Entries))
	for i := range result.Entries {
		logs = append(logs, result.Entries[i].Record())
	}
	return c.JSON(http.StatusOK, core.LogsResponse{Logs: logs})
}

func parseLogDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
