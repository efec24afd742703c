// Package importexport handles bulk CSV import of items and containers and
// export of the current arrangement.
package importexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cargohold/internal/core"
	"cargohold/internal/inventory"
)

// Item CSV columns. The parenthesized units are part of the header names.
const (
	colItemID       = "Item ID"
	colItemName     = "Name"
	colItemWidth    = "Width (cm)"
	colItemDepth    = "Depth (cm)"
	colItemHeight   = "Height (cm)"
	colItemMass     = "Mass (kg)"
	colItemPriority = "Priority (1-100)"
	colItemExpiry   = "Expiry Date"
	colItemUsage    = "Usage Limit"
	colItemZone     = "Preferred Zone"
)

// Container CSV columns. Unlike the item sheet these dimension headers carry
// no space before the unit.
const (
	colContainerID     = "Container ID"
	colContainerZone   = "Zone"
	colContainerWidth  = "Width(cm)"
	colContainerDepth  = "Depth(cm)"
	colContainerHeight = "Height(cm)"
	colContainerFace   = "Open Face"
	colContainerWeight = "Max Weight (kg)"
)

var (
	itemRequiredColumns = []string{
		colItemID, colItemName, colItemWidth, colItemDepth,
		colItemHeight, colItemMass, colItemPriority,
	}
	containerRequiredColumns = []string{
		colContainerID, colContainerZone, colContainerWidth,
		colContainerDepth, colContainerHeight,
	}
)

// Service implements CSV import and export over the inventory store.
type Service struct {
	store  inventory.Store
	logger *slog.Logger
}

// NewService creates an import/export service.
func NewService(store inventory.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// csvRows parses a CSV stream into header-keyed row maps. Row numbers start
// at 2 to account for the header line.
func csvRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func missingColumn(row map[string]string, required []string) string {
	for _, col := range required {
		if row[col] == "" {
			return col
		}
	}
	return ""
}

// optionalValue treats empty and "n/a" cells as absent.
func optionalValue(row map[string]string, col string) string {
	v := row[col]
	if v == "" || strings.EqualFold(v, "n/a") {
		return ""
	}
	return v
}

// ImportItems imports items from a CSV stream. Existing items are updated
// in place; rows that fail to parse are reported individually and do not
// abort the import.
func (s *Service) ImportItems(ctx context.Context, r io.Reader) (*core.ImportResponse, error) {
	rows, err := csvRows(r)
	if err != nil {
		return nil, core.NewInvalidRequestError("could not parse CSV file", err)
	}

	resp := &core.ImportResponse{Success: true}
	for i, row := range rows {
		rowNum := i + 2
		if err := s.importItemRow(ctx, row); err != nil {
			resp.Errors = append(resp.Errors, core.ImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		resp.ItemsImported++
	}

	s.logger.Info("items imported",
		"imported", resp.ItemsImported, "errors", len(resp.Errors))
	return resp, nil
}

func (s *Service) importItemRow(ctx context.Context, row map[string]string) error {
	if col := missingColumn(row, itemRequiredColumns); col != "" {
		return fmt.Errorf("missing required field: %s", col)
	}

	width, err := strconv.ParseFloat(row[colItemWidth], 64)
	if err != nil {
		return fmt.Errorf("invalid width: %s", row[colItemWidth])
	}
	depth, err := strconv.ParseFloat(row[colItemDepth], 64)
	if err != nil {
		return fmt.Errorf("invalid depth: %s", row[colItemDepth])
	}
	height, err := strconv.ParseFloat(row[colItemHeight], 64)
	if err != nil {
		return fmt.Errorf("invalid height: %s", row[colItemHeight])
	}
	mass, err := strconv.ParseFloat(row[colItemMass], 64)
	if err != nil {
		return fmt.Errorf("invalid mass: %s", row[colItemMass])
	}
	priority, err := strconv.Atoi(row[colItemPriority])
	if err != nil || priority < 1 || priority > 100 {
		return fmt.Errorf("invalid priority: %s", row[colItemPriority])
	}

	var expiryDate *time.Time
	if v := optionalValue(row, colItemExpiry); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return fmt.Errorf("invalid expiry date format: %s", v)
		}
		expiryDate = &t
	}

	var usageLimit *int
	if v := optionalValue(row, colItemUsage); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid usage limit: %s", v)
		}
		usageLimit = &n
	}

	item := &core.Item{
		ID:            row[colItemID],
		Name:          row[colItemName],
		Width:         width,
		Depth:         depth,
		Height:        height,
		Mass:          mass,
		Priority:      priority,
		ExpiryDate:    expiryDate,
		UsageLimit:    usageLimit,
		PreferredZone: row[colItemZone],
		Status:        core.StatusActive,
	}

	existing, err := s.store.GetItem(ctx, item.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		// Keep the lifecycle fields of the stored item
		item.CurrentUsage = existing.CurrentUsage
		item.Status = existing.Status
		return s.store.UpdateItem(ctx, item)
	}
	return s.store.CreateItem(ctx, item)
}

// ImportContainers imports containers from a CSV stream. Containers that
// already exist are left untouched and not counted.
func (s *Service) ImportContainers(ctx context.Context, r io.Reader) (*core.ImportResponse, error) {
	rows, err := csvRows(r)
	if err != nil {
		return nil, core.NewInvalidRequestError("could not parse CSV file", err)
	}

	resp := &core.ImportResponse{Success: true}
	for i, row := range rows {
		rowNum := i + 2
		created, err := s.importContainerRow(ctx, row)
		if err != nil {
			resp.Errors = append(resp.Errors, core.ImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if created {
			resp.ContainersImported++
		}
	}

	s.logger.Info("containers imported",
		"imported", resp.ContainersImported, "errors", len(resp.Errors))
	return resp, nil
}

func (s *Service) importContainerRow(ctx context.Context, row map[string]string) (bool, error) {
	if col := missingColumn(row, containerRequiredColumns); col != "" {
		return false, fmt.Errorf("missing required field: %s", col)
	}

	width, err := strconv.ParseFloat(row[colContainerWidth], 64)
	if err != nil {
		return false, fmt.Errorf("invalid width: %s", row[colContainerWidth])
	}
	depth, err := strconv.ParseFloat(row[colContainerDepth], 64)
	if err != nil {
		return false, fmt.Errorf("invalid depth: %s", row[colContainerDepth])
	}
	height, err := strconv.ParseFloat(row[colContainerHeight], 64)
	if err != nil {
		return false, fmt.Errorf("invalid height: %s", row[colContainerHeight])
	}

	openFace := core.FaceFront
	if v := row[colContainerFace]; v != "" {
		openFace = core.OpenFace(strings.ToLower(v))
	}

	var maxWeight *float64
	if v := optionalValue(row, colContainerWeight); v != "" {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, fmt.Errorf("invalid max weight: %s", v)
		}
		maxWeight = &w
	}

	container := &core.Container{
		ID:        row[colContainerID],
		Name:      row[colContainerID],
		Zone:      row[colContainerZone],
		Width:     width,
		Depth:     depth,
		Height:    height,
		OpenFace:  openFace,
		MaxWeight: maxWeight,
	}

	existing, err := s.store.GetContainer(ctx, container.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := s.store.CreateContainer(ctx, container); err != nil {
		return false, err
	}
	return true, nil
}

// ExportArrangement writes the current arrangement as CSV. Items without a
// position are omitted. Returns the number of data rows written.
func (s *Service) ExportArrangement(ctx context.Context, w io.Writer) (int, error) {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Item ID", "Container ID", "Coordinates (W1,D1,H1),(W2,D2,H2)"}); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	written := 0
	for skip := 0; ; skip += inventory.DefaultListLimit {
		items, err := s.store.ListItems(ctx, skip, inventory.DefaultListLimit)
		if err != nil {
			return written, err
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			pos, err := s.store.ItemPosition(ctx, item.ID)
			if err != nil {
				return written, err
			}
			if pos == nil {
				continue
			}

			dims := item.OrientedDims(pos.Orientation)
			record := []string{
				item.ID,
				pos.ContainerID,
				fmt.Sprintf("(%g,%g,%g),(%g,%g,%g)",
					pos.X, pos.Y, pos.Z,
					pos.X+dims.Width, pos.Y+dims.Height, pos.Z+dims.Depth),
			}
			if err := writer.Write(record); err != nil {
				return written, fmt.Errorf("failed to write CSV row: %w", err)
			}
			written++
		}

		if len(items) < inventory.DefaultListLimit {
			break
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, fmt.Errorf("failed to flush CSV: %w", err)
	}

	s.logger.Info("arrangement exported", "rows", written)
	return written, nil
}
