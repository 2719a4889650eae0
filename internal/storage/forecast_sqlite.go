package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/martinsuchenak/lifecycled/internal/model"
)

const defaultForecastLimit = 50

// SaveForecast stores a planning run, assigning a UUIDv7 id when missing
func (ss *SQLiteStorage) SaveForecast(run *model.ForecastRun) error {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating forecast id: %w", err)
		}
		run.ID = id.String()
	}
	if run.GeneratedAt.IsZero() {
		run.GeneratedAt = time.Now()
	}
	payload := string(run.Payload)
	if payload == "" {
		payload = "{}"
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, err := ss.db.Exec(`
		INSERT INTO forecast_runs (id, generated_at, today, forecast_years, waves_per_year, device_count, total_cost, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.GeneratedAt, run.Today, run.ForecastYears, run.WavesPerYear, run.DeviceCount, run.TotalCost, payload)
	if err != nil {
		return fmt.Errorf("inserting forecast: %w", err)
	}
	return nil
}

// GetForecast returns a run including its payload
func (ss *SQLiteStorage) GetForecast(id string) (*model.ForecastRun, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var run model.ForecastRun
	var payload string
	err := ss.db.QueryRow(`
		SELECT id, generated_at, today, forecast_years, waves_per_year, device_count, total_cost, payload
		FROM forecast_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.GeneratedAt, &run.Today, &run.ForecastYears, &run.WavesPerYear,
		&run.DeviceCount, &run.TotalCost, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrForecastNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying forecast: %w", err)
	}
	run.Payload = []byte(payload)
	return &run, nil
}

// ListForecasts returns the newest runs first, without payloads
func (ss *SQLiteStorage) ListForecasts(limit int) ([]model.ForecastRun, error) {
	if limit <= 0 {
		limit = defaultForecastLimit
	}

	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, generated_at, today, forecast_years, waves_per_year, device_count, total_cost
		FROM forecast_runs ORDER BY generated_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying forecasts: %w", err)
	}
	defer rows.Close()

	var runs []model.ForecastRun
	for rows.Next() {
		var run model.ForecastRun
		if err := rows.Scan(&run.ID, &run.GeneratedAt, &run.Today, &run.ForecastYears, &run.WavesPerYear,
			&run.DeviceCount, &run.TotalCost); err != nil {
			return nil, fmt.Errorf("scanning forecast: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PruneForecasts keeps the newest keep runs and deletes the rest
func (ss *SQLiteStorage) PruneForecasts(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		DELETE FROM forecast_runs WHERE id NOT IN (
			SELECT id FROM forecast_runs ORDER BY generated_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning forecasts: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
