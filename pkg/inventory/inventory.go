// Package inventory persists SMBus scan results in a local SQLite
// database so module inventories can be compared across runs.
package inventory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DB wraps the SQL database connection
type DB struct {
	conn *sql.DB
	path string
}

// Scan is one recorded bus scan.
type Scan struct {
	ID        int64
	Platform  string
	Family    string
	CreatedAt time.Time
}

// ModuleRecord is one discovered EEPROM within a scan.
type ModuleRecord struct {
	ID           int64
	ScanID       int64
	Bus          uint8
	Address      uint8
	SpdSize      uint16
	Type         string
	PartNumber   string
	Manufacturer string
	Serial       string
}

// Open creates or opens the inventory database.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate creates or updates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		family TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS modules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL,
		bus INTEGER NOT NULL,
		address INTEGER NOT NULL,
		spd_size INTEGER NOT NULL,
		type TEXT,
		part_number TEXT,
		manufacturer TEXT,
		serial TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_modules_scan_id ON modules(scan_id);
	CREATE INDEX IF NOT EXISTS idx_modules_serial ON modules(serial);
	CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// CreateScan records a new scan and returns it with its assigned ID.
func (db *DB) CreateScan(platform, family string) (*Scan, error) {
	scan := &Scan{Platform: platform, Family: family, CreatedAt: time.Now()}

	result, err := db.conn.Exec(
		`INSERT INTO scans (platform, family, created_at) VALUES (?, ?, ?)`,
		scan.Platform, scan.Family, scan.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	scan.ID = id
	return scan, nil
}

// AddModule attaches a discovered module to a scan.
func (db *DB) AddModule(m *ModuleRecord) error {
	result, err := db.conn.Exec(
		`INSERT INTO modules (scan_id, bus, address, spd_size, type, part_number, manufacturer, serial)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ScanID, m.Bus, m.Address, m.SpdSize, m.Type, m.PartNumber, m.Manufacturer, m.Serial,
	)
	if err != nil {
		return fmt.Errorf("failed to add module: %w", err)
	}
	m.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

// ListScans returns the most recent scans, newest first.
func (db *DB) ListScans(limit int) ([]Scan, error) {
	rows, err := db.conn.Query(
		`SELECT id, platform, family, created_at FROM scans
		 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var s Scan
		if err := rows.Scan(&s.ID, &s.Platform, &s.Family, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

// ListModules returns the modules recorded for a scan, ordered by
// bus and address.
func (db *DB) ListModules(scanID int64) ([]ModuleRecord, error) {
	rows, err := db.conn.Query(
		`SELECT id, scan_id, bus, address, spd_size, type, part_number, manufacturer, serial
		 FROM modules WHERE scan_id = ? ORDER BY bus, address`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []ModuleRecord
	for rows.Next() {
		var m ModuleRecord
		if err := rows.Scan(&m.ID, &m.ScanID, &m.Bus, &m.Address, &m.SpdSize,
			&m.Type, &m.PartNumber, &m.Manufacturer, &m.Serial); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}
