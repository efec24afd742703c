package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cargohold/internal/core"
)

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates a new PostgreSQL inventory store.
// It creates the schema if it doesn't exist.
func NewPostgreSQLStore(pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	ctx := context.Background()

	schema := []string{
		`CREATE TABLE IF NOT EXISTS containers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			zone TEXT NOT NULL,
			width DOUBLE PRECISION NOT NULL,
			depth DOUBLE PRECISION NOT NULL,
			height DOUBLE PRECISION NOT NULL,
			open_face TEXT NOT NULL DEFAULT 'front',
			max_weight DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			width DOUBLE PRECISION NOT NULL,
			height DOUBLE PRECISION NOT NULL,
			depth DOUBLE PRECISION NOT NULL,
			mass DOUBLE PRECISION NOT NULL,
			priority INTEGER NOT NULL,
			expiry_date DATE,
			usage_limit INTEGER,
			current_usage INTEGER NOT NULL DEFAULT 0,
			preferred_zone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			container_id TEXT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			z DOUBLE PRECISION NOT NULL,
			orientation INTEGER NOT NULL,
			visible BOOLEAN NOT NULL DEFAULT FALSE,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS waste_records (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			waste_date DATE NOT NULL,
			return_mission_id TEXT,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS return_missions (
			id TEXT PRIMARY KEY,
			scheduled_date DATE NOT NULL,
			max_weight DOUBLE PRECISION NOT NULL,
			max_volume DOUBLE PRECISION NOT NULL,
			current_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'planned'
		)`,
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create inventory schema: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_items_name ON items(name)",
		"CREATE INDEX IF NOT EXISTS idx_items_status ON items(status)",
		"CREATE INDEX IF NOT EXISTS idx_containers_zone ON containers(zone)",
		"CREATE INDEX IF NOT EXISTS idx_positions_item ON positions(item_id)",
		"CREATE INDEX IF NOT EXISTS idx_positions_container ON positions(container_id)",
		"CREATE INDEX IF NOT EXISTS idx_waste_item ON waste_records(item_id)",
		"CREATE INDEX IF NOT EXISTS idx_waste_mission ON waste_records(return_mission_id)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// Containers

func (s *PostgreSQLStore) CreateContainer(ctx context.Context, c *core.Container) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO containers (id, name, zone, width, depth, height, open_face, max_weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Zone, c.Width, c.Depth, c.Height, string(c.OpenFace), c.MaxWeight)
	if err != nil {
		return fmt.Errorf("insert container %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) GetContainer(ctx context.Context, id string) (*core.Container, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, zone, width, depth, height, open_face, max_weight
		FROM containers WHERE id = $1
	`, id)
	return scanContainerPG(row)
}

func (s *PostgreSQLStore) ListContainers(ctx context.Context, skip, limit int) ([]*core.Container, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, zone, width, depth, height, open_face, max_weight
		FROM containers ORDER BY id LIMIT $1 OFFSET $2
	`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()
	return collectContainersPG(rows)
}

func (s *PostgreSQLStore) ContainersByZone(ctx context.Context, zone string) ([]*core.Container, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, zone, width, depth, height, open_face, max_weight
		FROM containers WHERE zone = $1 ORDER BY id
	`, zone)
	if err != nil {
		return nil, fmt.Errorf("list containers by zone: %w", err)
	}
	defer rows.Close()
	return collectContainersPG(rows)
}

// Items

func (s *PostgreSQLStore) CreateItem(ctx context.Context, it *core.Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (id, name, width, height, depth, mass, priority,
			expiry_date, usage_limit, current_usage, preferred_zone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, it.ID, it.Name, it.Width, it.Height, it.Depth, it.Mass, it.Priority,
		it.ExpiryDate, it.UsageLimit, it.CurrentUsage, it.PreferredZone, string(it.Status))
	if err != nil {
		return fmt.Errorf("insert item %s: %w", it.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) UpdateItem(ctx context.Context, it *core.Item) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE items SET name = $1, width = $2, height = $3, depth = $4, mass = $5,
			priority = $6, expiry_date = $7, usage_limit = $8, current_usage = $9,
			preferred_zone = $10, status = $11
		WHERE id = $12
	`, it.Name, it.Width, it.Height, it.Depth, it.Mass, it.Priority,
		it.ExpiryDate, it.UsageLimit, it.CurrentUsage, it.PreferredZone,
		string(it.Status), it.ID)
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update item %s: not found", it.ID)
	}
	return nil
}

func (s *PostgreSQLStore) GetItem(ctx context.Context, id string) (*core.Item, error) {
	row := s.pool.QueryRow(ctx, itemSelectPG+" WHERE id = $1", id)
	return scanItemPG(row)
}

func (s *PostgreSQLStore) GetItemByName(ctx context.Context, name string) (*core.Item, error) {
	row := s.pool.QueryRow(ctx, itemSelectPG+" WHERE name = $1 ORDER BY id LIMIT 1", name)
	return scanItemPG(row)
}

func (s *PostgreSQLStore) ListItems(ctx context.Context, skip, limit int) ([]*core.Item, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, itemSelectPG+" ORDER BY id LIMIT $1 OFFSET $2", limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItemsPG(rows)
}

func (s *PostgreSQLStore) ActiveItems(ctx context.Context) ([]*core.Item, error) {
	rows, err := s.pool.Query(ctx, itemSelectPG+" WHERE status = $1 ORDER BY id", string(core.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	defer rows.Close()
	return collectItemsPG(rows)
}

const itemSelectPG = `
	SELECT id, name, width, height, depth, mass, priority,
		expiry_date, usage_limit, current_usage, preferred_zone, status
	FROM items`

// Positions

func (s *PostgreSQLStore) CreatePosition(ctx context.Context, p *core.Position) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (id, item_id, container_id, x, y, z, orientation, visible, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.ItemID, p.ContainerID, p.X, p.Y, p.Z, p.Orientation, p.Visible, p.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert position %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) DeletePosition(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM positions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", id, err)
	}
	return nil
}

func (s *PostgreSQLStore) ItemPosition(ctx context.Context, itemID string) (*core.Position, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, item_id, container_id, x, y, z, orientation, visible, timestamp
		FROM positions WHERE item_id = $1 ORDER BY timestamp DESC LIMIT 1
	`, itemID)
	return scanPositionPG(row)
}

func (s *PostgreSQLStore) ContainerPositions(ctx context.Context, containerID string) ([]*core.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, item_id, container_id, x, y, z, orientation, visible, timestamp
		FROM positions WHERE container_id = $1 ORDER BY timestamp
	`, containerID)
	if err != nil {
		return nil, fmt.Errorf("list container positions: %w", err)
	}
	defer rows.Close()

	var positions []*core.Position
	for rows.Next() {
		p, err := scanPositionPG(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Waste records

func (s *PostgreSQLStore) CreateWasteRecord(ctx context.Context, w *core.WasteRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO waste_records (id, item_id, reason, waste_date, return_mission_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.ItemID, string(w.Reason), w.WasteDate.UTC(), nullIfEmpty(w.ReturnMissionID), w.Notes)
	if err != nil {
		return fmt.Errorf("insert waste record %s: %w", w.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) WasteRecordForItem(ctx context.Context, itemID string) (*core.WasteRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, item_id, reason, waste_date, return_mission_id, notes
		FROM waste_records WHERE item_id = $1 LIMIT 1
	`, itemID)
	return scanWasteRecordPG(row)
}

func (s *PostgreSQLStore) UnassignedWasteRecords(ctx context.Context) ([]*core.WasteRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, item_id, reason, waste_date, return_mission_id, notes
		FROM waste_records WHERE return_mission_id IS NULL ORDER BY waste_date
	`)
	if err != nil {
		return nil, fmt.Errorf("list unassigned waste: %w", err)
	}
	defer rows.Close()

	var records []*core.WasteRecord
	for rows.Next() {
		w, err := scanWasteRecordPG(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, w)
	}
	return records, rows.Err()
}

func (s *PostgreSQLStore) AssignWasteToMission(ctx context.Context, wasteID, missionID string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE waste_records SET return_mission_id = $1 WHERE id = $2", missionID, wasteID)
	if err != nil {
		return fmt.Errorf("assign waste %s to mission %s: %w", wasteID, missionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assign waste %s: not found", wasteID)
	}
	return nil
}

// Return missions

func (s *PostgreSQLStore) CreateReturnMission(ctx context.Context, m *core.ReturnMission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO return_missions (id, scheduled_date, max_weight, max_volume,
			current_weight, current_volume, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.ScheduledDate.UTC(), m.MaxWeight, m.MaxVolume,
		m.CurrentWeight, m.CurrentVolume, string(m.Status))
	if err != nil {
		return fmt.Errorf("insert return mission %s: %w", m.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) GetReturnMission(ctx context.Context, id string) (*core.ReturnMission, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, scheduled_date, max_weight, max_volume, current_weight, current_volume, status
		FROM return_missions WHERE id = $1
	`, id)
	return scanReturnMissionPG(row)
}

func (s *PostgreSQLStore) UpdateReturnMission(ctx context.Context, m *core.ReturnMission) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE return_missions SET scheduled_date = $1, max_weight = $2, max_volume = $3,
			current_weight = $4, current_volume = $5, status = $6
		WHERE id = $7
	`, m.ScheduledDate.UTC(), m.MaxWeight, m.MaxVolume,
		m.CurrentWeight, m.CurrentVolume, string(m.Status), m.ID)
	if err != nil {
		return fmt.Errorf("update return mission %s: %w", m.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) ActiveReturnMissions(ctx context.Context) ([]*core.ReturnMission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, scheduled_date, max_weight, max_volume, current_weight, current_volume, status
		FROM return_missions WHERE status IN ($1, $2) ORDER BY scheduled_date
	`, string(core.MissionPlanned), string(core.MissionLoading))
	if err != nil {
		return nil, fmt.Errorf("list active missions: %w", err)
	}
	defer rows.Close()

	var missions []*core.ReturnMission
	for rows.Next() {
		m, err := scanReturnMissionPG(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// Close is a no-op: the pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}

// pgx scanners: DATE, TIMESTAMPTZ and BOOLEAN columns map to native Go types.

func scanContainerPG(row pgx.Row) (*core.Container, error) {
	var c core.Container
	var openFace string
	err := row.Scan(&c.ID, &c.Name, &c.Zone, &c.Width, &c.Depth, &c.Height, &openFace, &c.MaxWeight)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan container: %w", err)
	}
	c.OpenFace = core.OpenFace(openFace)
	return &c, nil
}

func collectContainersPG(rows pgx.Rows) ([]*core.Container, error) {
	var containers []*core.Container
	for rows.Next() {
		c, err := scanContainerPG(rows)
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

func scanItemPG(row pgx.Row) (*core.Item, error) {
	var it core.Item
	var status string
	err := row.Scan(&it.ID, &it.Name, &it.Width, &it.Height, &it.Depth, &it.Mass,
		&it.Priority, &it.ExpiryDate, &it.UsageLimit, &it.CurrentUsage, &it.PreferredZone, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Status = core.ItemStatus(status)
	return &it, nil
}

func collectItemsPG(rows pgx.Rows) ([]*core.Item, error) {
	var items []*core.Item
	for rows.Next() {
		it, err := scanItemPG(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanPositionPG(row pgx.Row) (*core.Position, error) {
	var p core.Position
	err := row.Scan(&p.ID, &p.ItemID, &p.ContainerID, &p.X, &p.Y, &p.Z,
		&p.Orientation, &p.Visible, &p.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan position: %w", err)
	}
	return &p, nil
}

func scanWasteRecordPG(row pgx.Row) (*core.WasteRecord, error) {
	var w core.WasteRecord
	var reason string
	var missionID *string
	err := row.Scan(&w.ID, &w.ItemID, &reason, &w.WasteDate, &missionID, &w.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan waste record: %w", err)
	}
	w.Reason = core.WasteReason(reason)
	if missionID != nil {
		w.ReturnMissionID = *missionID
	}
	return &w, nil
}

func scanReturnMissionPG(row pgx.Row) (*core.ReturnMission, error) {
	var m core.ReturnMission
	var status string
	err := row.Scan(&m.ID, &m.ScheduledDate, &m.MaxWeight, &m.MaxVolume,
		&m.CurrentWeight, &m.CurrentVolume, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan return mission: %w", err)
	}
	m.Status = core.MissionStatus(status)
	return &m, nil
}
