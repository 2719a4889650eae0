package model

import (
	"encoding/json"
	"time"
)

// ForecastRun is a persisted snapshot of one planning run
type ForecastRun struct {
	ID            string          `json:"id"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Today         time.Time       `json:"today"`
	ForecastYears int             `json:"forecast_years"`
	WavesPerYear  int             `json:"waves_per_year"`
	DeviceCount   int             `json:"device_count"`
	TotalCost     float64         `json:"total_cost"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}
