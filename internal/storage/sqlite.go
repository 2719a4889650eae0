package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/martinsuchenak/lifecycled/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

const deviceColumns = `serial, name, model, firmware, network_id, usage, created_at, updated_at`

// SQLiteStorage implements Storage with SQLite backend
type SQLiteStorage struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens (or creates) lifecycle.db under dataDir and brings
// the schema up to date.
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "lifecycle.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := ss.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return ss, nil
}

func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = ss.db.Exec(string(schema))
	return err
}

// Close closes the database connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// GetDatabasePath returns the path of the database file
func (ss *SQLiteStorage) GetDatabasePath() string {
	return ss.path
}

// Ping checks the database is reachable
func (ss *SQLiteStorage) Ping() error {
	return ss.db.Ping()
}

// ListDevices returns all devices ordered by serial, optionally filtered
func (ss *SQLiteStorage) ListDevices(filter *model.DeviceFilter) ([]model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE 1=1`
	var args []any
	if filter != nil {
		if filter.NetworkID != "" {
			query += ` AND network_id = ?`
			args = append(args, filter.NetworkID)
		}
		if filter.Model != "" {
			query += ` AND UPPER(model) LIKE ?`
			args = append(args, strings.ToUpper(filter.Model)+"%")
		}
	}
	query += ` ORDER BY serial`

	rows, err := ss.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// GetDevice retrieves a device by serial, case-insensitively
func (ss *SQLiteStorage) GetDevice(serial string) (*model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`SELECT `+deviceColumns+` FROM devices WHERE UPPER(serial) = UPPER(?) LIMIT 1`, serial)
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}
	defer rows.Close()

	devices, err := scanDevices(rows)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	return &devices[0], nil
}

// SaveDevice inserts or replaces a device keyed by serial
func (ss *SQLiteStorage) SaveDevice(device *model.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertDevice(tx, device, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveDevices upserts a batch in one transaction. The whole batch is rejected
// if any record is invalid.
func (ss *SQLiteStorage) SaveDevices(devices []model.Device) (int, error) {
	for i := range devices {
		if err := devices[i].Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for i := range devices {
		if err := upsertDevice(tx, &devices[i], now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(devices), nil
}

func upsertDevice(tx *sql.Tx, device *model.Device, now time.Time) error {
	usage, err := encodeJSON(device.Usage)
	if err != nil {
		return fmt.Errorf("encoding usage: %w", err)
	}

	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	_, err = tx.Exec(`
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (serial) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			firmware = excluded.firmware,
			network_id = excluded.network_id,
			usage = excluded.usage,
			updated_at = excluded.updated_at
	`, strings.TrimSpace(device.Serial), device.Name, strings.TrimSpace(device.Model), device.Firmware,
		device.NetworkID, usage, device.CreatedAt, device.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving device %s: %w", device.Serial, err)
	}
	return nil
}

// DeleteDevice removes a device
func (ss *SQLiteStorage) DeleteDevice(serial string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec("DELETE FROM devices WHERE UPPER(serial) = UPPER(?)", serial)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

func scanDevices(rows *sql.Rows) ([]model.Device, error) {
	var devices []model.Device
	for rows.Next() {
		var d model.Device
		var usage sql.NullString
		if err := rows.Scan(&d.Serial, &d.Name, &d.Model, &d.Firmware, &d.NetworkID, &usage,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		if usage.Valid && usage.String != "" {
			d.Usage = &model.Usage{}
			if err := decodeJSON(usage.String, d.Usage); err != nil {
				return nil, fmt.Errorf("decoding usage of %s: %w", d.Serial, err)
			}
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

// ListNetworks returns every network ordered by id
func (ss *SQLiteStorage) ListNetworks() ([]model.Network, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`SELECT id, name, created_at, updated_at FROM networks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying networks: %w", err)
	}
	defer rows.Close()

	var networks []model.Network
	for rows.Next() {
		var n model.Network
		if err := rows.Scan(&n.ID, &n.Name, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning network: %w", err)
		}
		networks = append(networks, n)
	}
	return networks, rows.Err()
}

// GetNetwork retrieves a network by id
func (ss *SQLiteStorage) GetNetwork(id string) (*model.Network, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var n model.Network
	err := ss.db.QueryRow(`SELECT id, name, created_at, updated_at FROM networks WHERE id = ?`, id).
		Scan(&n.ID, &n.Name, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNetworkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying network: %w", err)
	}
	return &n, nil
}

// SaveNetwork inserts or renames a network
func (ss *SQLiteStorage) SaveNetwork(network *model.Network) error {
	if strings.TrimSpace(network.ID) == "" {
		return ErrInvalidID
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	if network.CreatedAt.IsZero() {
		network.CreatedAt = now
	}
	network.UpdatedAt = now

	_, err := ss.db.Exec(`
		INSERT INTO networks (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, network.ID, network.Name, network.CreatedAt, network.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving network: %w", err)
	}
	return nil
}
