package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cargohold/internal/core"
)

const dateLayout = "2006-01-02"

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite inventory store.
// It creates the schema if it doesn't exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS containers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			zone TEXT NOT NULL,
			width REAL NOT NULL,
			depth REAL NOT NULL,
			height REAL NOT NULL,
			open_face TEXT NOT NULL DEFAULT 'front',
			max_weight REAL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			depth REAL NOT NULL,
			mass REAL NOT NULL,
			priority INTEGER NOT NULL,
			expiry_date TEXT,
			usage_limit INTEGER,
			current_usage INTEGER NOT NULL DEFAULT 0,
			preferred_zone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			container_id TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			orientation INTEGER NOT NULL,
			visible INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS waste_records (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			waste_date TEXT NOT NULL,
			return_mission_id TEXT,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS return_missions (
			id TEXT PRIMARY KEY,
			scheduled_date TEXT NOT NULL,
			max_weight REAL NOT NULL,
			max_volume REAL NOT NULL,
			current_weight REAL NOT NULL DEFAULT 0,
			current_volume REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'planned'
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
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
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Containers

func (s *SQLiteStore) CreateContainer(ctx context.Context, c *core.Container) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO containers (id, name, zone, width, depth, height, open_face, max_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Zone, c.Width, c.Depth, c.Height, string(c.OpenFace), c.MaxWeight)
	if err != nil {
		return fmt.Errorf("insert container %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetContainer(ctx context.Context, id string) (*core.Container, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, zone, width, depth, height, open_face, max_weight
		FROM containers WHERE id = ?
	`, id)
	return scanContainer(row)
}

func (s *SQLiteStore) ListContainers(ctx context.Context, skip, limit int) ([]*core.Container, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, zone, width, depth, height, open_face, max_weight
		FROM containers ORDER BY id LIMIT ? OFFSET ?
	`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()
	return collectContainers(rows)
}

func (s *SQLiteStore) ContainersByZone(ctx context.Context, zone string) ([]*core.Container, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, zone, width, depth, height, open_face, max_weight
		FROM containers WHERE zone = ? ORDER BY id
	`, zone)
	if err != nil {
		return nil, fmt.Errorf("list containers by zone: %w", err)
	}
	defer rows.Close()
	return collectContainers(rows)
}

// Items

func (s *SQLiteStore) CreateItem(ctx context.Context, it *core.Item) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, width, height, depth, mass, priority,
			expiry_date, usage_limit, current_usage, preferred_zone, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.Name, it.Width, it.Height, it.Depth, it.Mass, it.Priority,
		dateOrNil(it.ExpiryDate), it.UsageLimit, it.CurrentUsage, it.PreferredZone, string(it.Status))
	if err != nil {
		return fmt.Errorf("insert item %s: %w", it.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, it *core.Item) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET name = ?, width = ?, height = ?, depth = ?, mass = ?,
			priority = ?, expiry_date = ?, usage_limit = ?, current_usage = ?,
			preferred_zone = ?, status = ?
		WHERE id = ?
	`, it.Name, it.Width, it.Height, it.Depth, it.Mass, it.Priority,
		dateOrNil(it.ExpiryDate), it.UsageLimit, it.CurrentUsage, it.PreferredZone,
		string(it.Status), it.ID)
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update item %s: not found", it.ID)
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*core.Item, error) {
	row := s.db.QueryRowContext(ctx, itemSelectSQLite+" WHERE id = ?", id)
	return scanItem(row)
}

func (s *SQLiteStore) GetItemByName(ctx context.Context, name string) (*core.Item, error) {
	row := s.db.QueryRowContext(ctx, itemSelectSQLite+" WHERE name = ? ORDER BY id LIMIT 1", name)
	return scanItem(row)
}

func (s *SQLiteStore) ListItems(ctx context.Context, skip, limit int) ([]*core.Item, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, itemSelectSQLite+" ORDER BY id LIMIT ? OFFSET ?", limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *SQLiteStore) ActiveItems(ctx context.Context) ([]*core.Item, error) {
	rows, err := s.db.QueryContext(ctx, itemSelectSQLite+" WHERE status = ? ORDER BY id", string(core.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

const itemSelectSQLite = `
	SELECT id, name, width, height, depth, mass, priority,
		expiry_date, usage_limit, current_usage, preferred_zone, status
	FROM items`

// Positions

func (s *SQLiteStore) CreatePosition(ctx context.Context, p *core.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, item_id, container_id, x, y, z, orientation, visible, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.ItemID, p.ContainerID, p.X, p.Y, p.Z, p.Orientation,
		boolToInt(p.Visible), p.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert position %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeletePosition(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM positions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ItemPosition(ctx context.Context, itemID string) (*core.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, container_id, x, y, z, orientation, visible, timestamp
		FROM positions WHERE item_id = ? ORDER BY timestamp DESC LIMIT 1
	`, itemID)
	return scanPositionSQLite(row)
}

func (s *SQLiteStore) ContainerPositions(ctx context.Context, containerID string) ([]*core.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, container_id, x, y, z, orientation, visible, timestamp
		FROM positions WHERE container_id = ? ORDER BY timestamp
	`, containerID)
	if err != nil {
		return nil, fmt.Errorf("list container positions: %w", err)
	}
	defer rows.Close()

	var positions []*core.Position
	for rows.Next() {
		p, err := scanPositionSQLite(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Waste records

func (s *SQLiteStore) CreateWasteRecord(ctx context.Context, w *core.WasteRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO waste_records (id, item_id, reason, waste_date, return_mission_id, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.ID, w.ItemID, string(w.Reason), w.WasteDate.UTC().Format(dateLayout),
		nullIfEmpty(w.ReturnMissionID), w.Notes)
	if err != nil {
		return fmt.Errorf("insert waste record %s: %w", w.ID, err)
	}
	return nil
}

func (s *SQLiteStore) WasteRecordForItem(ctx context.Context, itemID string) (*core.WasteRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, reason, waste_date, return_mission_id, notes
		FROM waste_records WHERE item_id = ? LIMIT 1
	`, itemID)
	return scanWasteRecord(row)
}

func (s *SQLiteStore) UnassignedWasteRecords(ctx context.Context) ([]*core.WasteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, reason, waste_date, return_mission_id, notes
		FROM waste_records WHERE return_mission_id IS NULL ORDER BY waste_date
	`)
	if err != nil {
		return nil, fmt.Errorf("list unassigned waste: %w", err)
	}
	defer rows.Close()

	var records []*core.WasteRecord
	for rows.Next() {
		w, err := scanWasteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, w)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) AssignWasteToMission(ctx context.Context, wasteID, missionID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE waste_records SET return_mission_id = ? WHERE id = ?", missionID, wasteID)
	if err != nil {
		return fmt.Errorf("assign waste %s to mission %s: %w", wasteID, missionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assign waste %s: not found", wasteID)
	}
	return nil
}

// Return missions

func (s *SQLiteStore) CreateReturnMission(ctx context.Context, m *core.ReturnMission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO return_missions (id, scheduled_date, max_weight, max_volume,
			current_weight, current_volume, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ScheduledDate.UTC().Format(dateLayout), m.MaxWeight, m.MaxVolume,
		m.CurrentWeight, m.CurrentVolume, string(m.Status))
	if err != nil {
		return fmt.Errorf("insert return mission %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReturnMission(ctx context.Context, id string) (*core.ReturnMission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scheduled_date, max_weight, max_volume, current_weight, current_volume, status
		FROM return_missions WHERE id = ?
	`, id)
	return scanReturnMission(row)
}

func (s *SQLiteStore) UpdateReturnMission(ctx context.Context, m *core.ReturnMission) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE return_missions SET scheduled_date = ?, max_weight = ?, max_volume = ?,
			current_weight = ?, current_volume = ?, status = ?
		WHERE id = ?
	`, m.ScheduledDate.UTC().Format(dateLayout), m.MaxWeight, m.MaxVolume,
		m.CurrentWeight, m.CurrentVolume, string(m.Status), m.ID)
	if err != nil {
		return fmt.Errorf("update return mission %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ActiveReturnMissions(ctx context.Context) ([]*core.ReturnMission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scheduled_date, max_weight, max_volume, current_weight, current_volume, status
		FROM return_missions WHERE status IN (?, ?) ORDER BY scheduled_date
	`, string(core.MissionPlanned), string(core.MissionLoading))
	if err != nil {
		return nil, fmt.Errorf("list active missions: %w", err)
	}
	defer rows.Close()

	var missions []*core.ReturnMission
	for rows.Next() {
		m, err := scanReturnMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// Close is a no-op: the *sql.DB is owned by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}

// scanning helpers shared by both SQL backends

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContainer(row rowScanner) (*core.Container, error) {
	var c core.Container
	var openFace string
	var maxWeight sql.NullFloat64
	err := row.Scan(&c.ID, &c.Name, &c.Zone, &c.Width, &c.Depth, &c.Height, &openFace, &maxWeight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan container: %w", err)
	}
	c.OpenFace = core.OpenFace(openFace)
	if maxWeight.Valid {
		c.MaxWeight = &maxWeight.Float64
	}
	return &c, nil
}

func collectContainers(rows *sql.Rows) ([]*core.Container, error) {
	var containers []*core.Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

func scanItem(row rowScanner) (*core.Item, error) {
	var it core.Item
	var expiry sql.NullString
	var usageLimit sql.NullInt64
	var preferredZone sql.NullString
	var status string
	err := row.Scan(&it.ID, &it.Name, &it.Width, &it.Height, &it.Depth, &it.Mass,
		&it.Priority, &expiry, &usageLimit, &it.CurrentUsage, &preferredZone, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	if expiry.Valid && expiry.String != "" {
		t, err := time.Parse(dateLayout, expiry.String[:min(len(expiry.String), 10)])
		if err == nil {
			it.ExpiryDate = &t
		}
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		it.UsageLimit = &n
	}
	it.PreferredZone = preferredZone.String
	it.Status = core.ItemStatus(status)
	return &it, nil
}

func collectItems(rows *sql.Rows) ([]*core.Item, error) {
	var items []*core.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanPositionSQLite(row rowScanner) (*core.Position, error) {
	var p core.Position
	var visible int
	var ts string
	err := row.Scan(&p.ID, &p.ItemID, &p.ContainerID, &p.X, &p.Y, &p.Z,
		&p.Orientation, &visible, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan position: %w", err)
	}
	p.Visible = visible != 0
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		p.Timestamp = t
	}
	return &p, nil
}

func scanWasteRecord(row rowScanner) (*core.WasteRecord, error) {
	var w core.WasteRecord
	var reason, wasteDate string
	var missionID, notes sql.NullString
	err := row.Scan(&w.ID, &w.ItemID, &reason, &wasteDate, &missionID, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan waste record: %w", err)
	}
	w.Reason = core.WasteReason(reason)
	if t, err := time.Parse(dateLayout, wasteDate[:min(len(wasteDate), 10)]); err == nil {
		w.WasteDate = t
	}
	w.ReturnMissionID = missionID.String
	w.Notes = notes.String
	return &w, nil
}

func scanReturnMission(row rowScanner) (*core.ReturnMission, error) {
	var m core.ReturnMission
	var scheduled, status string
	err := row.Scan(&m.ID, &scheduled, &m.MaxWeight, &m.MaxVolume,
		&m.CurrentWeight, &m.CurrentVolume, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan return mission: %w", err)
	}
	if t, err := time.Parse(dateLayout, scheduled[:min(len(scheduled), 10)]); err == nil {
		m.ScheduledDate = t
	}
	m.Status = core.MissionStatus(status)
	return &m, nil
}

func dateOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
