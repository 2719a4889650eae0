package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/pricing"
)

// LoadCatalog implements pricing.Cache
func (ss *SQLiteStorage) LoadCatalog(ctx context.Context) (pricing.Catalog, time.Time, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var fetchedAt time.Time
	err := ss.db.QueryRowContext(ctx, `SELECT fetched_at FROM price_cache_meta WHERE id = 1`).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, pricing.ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("querying price cache: %w", err)
	}

	rows, err := ss.db.QueryContext(ctx, `SELECT family, model, price FROM prices`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("querying prices: %w", err)
	}
	defer rows.Close()

	catalog := make(pricing.Catalog)
	for rows.Next() {
		var family, model string
		var price float64
		if err := rows.Scan(&family, &model, &price); err != nil {
			return nil, time.Time{}, fmt.Errorf("scanning price: %w", err)
		}
		catalog.Set(family, model, price)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return catalog, fetchedAt, nil
}

// StoreCatalog implements pricing.Cache. The previous catalog is replaced.
func (ss *SQLiteStorage) StoreCatalog(ctx context.Context, catalog pricing.Catalog, fetchedAt time.Time) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM prices`); err != nil {
		return fmt.Errorf("clearing prices: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO prices (family, model, price) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing price insert: %w", err)
	}
	defer stmt.Close()

	for family, models := range catalog.Normalized() {
		for model, price := range models {
			if _, err := stmt.ExecContext(ctx, family, model, price); err != nil {
				return fmt.Errorf("inserting price %s: %w", model, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO price_cache_meta (id, fetched_at) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET fetched_at = excluded.fetched_at
	`, fetchedAt)
	if err != nil {
		return fmt.Errorf("saving price cache metadata: %w", err)
	}

	return tx.Commit()
}
