package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
)

// LoadEOLDocument returns the stored EOL table, or ErrEOLTableEmpty when none
// has been loaded.
func (ss *SQLiteStorage) LoadEOLDocument() (*eol.Document, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`SELECT key, announcement, end_of_sale, end_of_support FROM eol_records`)
	if err != nil {
		return nil, fmt.Errorf("querying eol records: %w", err)
	}
	defer rows.Close()

	doc := &eol.Document{Records: make(map[string]model.EOLRecord)}
	for rows.Next() {
		var key string
		var r model.EOLRecord
		if err := rows.Scan(&key, &r.Announcement, &r.EndOfSale, &r.EndOfSupport); err != nil {
			return nil, fmt.Errorf("scanning eol record: %w", err)
		}
		doc.Records[key] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(doc.Records) == 0 {
		return nil, ErrEOLTableEmpty
	}

	err = ss.db.QueryRow(`SELECT last_updated FROM eol_meta WHERE id = 1`).Scan(&doc.LastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying eol metadata: %w", err)
	}
	return doc, nil
}

// ReplaceEOLDocument swaps the whole EOL table in one transaction. Keys are
// stored canonicalized.
func (ss *SQLiteStorage) ReplaceEOLDocument(doc *eol.Document, source string) error {
	if doc == nil || len(doc.Records) == 0 {
		return ErrEOLTableEmpty
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM eol_records`); err != nil {
		return fmt.Errorf("clearing eol records: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO eol_records (key, announcement, end_of_sale, end_of_support)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			announcement = excluded.announcement,
			end_of_sale = excluded.end_of_sale,
			end_of_support = excluded.end_of_support
	`)
	if err != nil {
		return fmt.Errorf("preparing eol insert: %w", err)
	}
	defer stmt.Close()

	for key, r := range doc.Records {
		if _, err := stmt.Exec(eol.Normalize(key), r.Announcement, r.EndOfSale, r.EndOfSupport); err != nil {
			return fmt.Errorf("inserting eol record %s: %w", key, err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO eol_meta (id, last_updated, source, loaded_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_updated = excluded.last_updated,
			source = excluded.source,
			loaded_at = excluded.loaded_at
	`, doc.LastUpdated, source, time.Now())
	if err != nil {
		return fmt.Errorf("saving eol metadata: %w", err)
	}

	return tx.Commit()
}

// EOLInfo reports the size and provenance of the stored table
func (ss *SQLiteStorage) EOLInfo() (*EOLInfo, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	info := &EOLInfo{}
	if err := ss.db.QueryRow(`SELECT COUNT(*) FROM eol_records`).Scan(&info.Records); err != nil {
		return nil, fmt.Errorf("counting eol records: %w", err)
	}
	err := ss.db.QueryRow(`SELECT last_updated, source, loaded_at FROM eol_meta WHERE id = 1`).
		Scan(&info.LastUpdated, &info.Source, &info.LoadedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying eol metadata: %w", err)
	}
	return info, nil
}
