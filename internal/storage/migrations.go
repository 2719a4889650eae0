package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations run in order on top of schema.sql. Version 1 is the schema
// itself.
var migrations = []migration{
	{1, "baseline schema", func(*sql.Tx) error { return nil }},
	{2, "device usage hints", addColumn("devices", "usage", "TEXT NOT NULL DEFAULT ''")},
	{3, "eol load source", addColumn("eol_meta", "source", "TEXT NOT NULL DEFAULT ''")},
}

// SchemaVersion returns the highest applied migration
func (ss *SQLiteStorage) SchemaVersion() (int, error) {
	var version sql.NullInt64
	if err := ss.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("checking migration version: %w", err)
	}
	return int(version.Int64), nil
}

func (ss *SQLiteStorage) migrate() error {
	version, err := ss.SchemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}

		tx, err := ss.db.Begin()
		if err != nil {
			return err
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("setting migration version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func addColumn(table, column, definition string) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		_, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
		if err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("adding %s.%s: %w", table, column, err)
		}
		return nil
	}
}

// isDuplicateColumnError checks if the error is about a column that already exists
func isDuplicateColumnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
