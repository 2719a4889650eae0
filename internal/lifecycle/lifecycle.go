// Package lifecycle classifies devices by how close they are to end of
// support and scores the replacement risk.
package lifecycle

import (
	"time"
)

// Status is the five-step lifecycle classification
type Status string

const (
	StatusCurrent      Status = "Current"
	StatusPlanning     Status = "Planning"
	StatusWarning      Status = "Warning"
	StatusCritical     Status = "Critical"
	StatusEndOfSupport Status = "End of Support"
)

// Statuses lists every status from least to most severe
var Statuses = []Status{StatusCurrent, StatusPlanning, StatusWarning, StatusCritical, StatusEndOfSupport}

// Health is the three-bucket dashboard categorization
type Health string

const (
	HealthGood     Health = "Good"
	HealthWarning  Health = "Warning"
	HealthCritical Health = "Critical"
)

// HealthBuckets lists every health bucket from best to worst
var HealthBuckets = []Health{HealthGood, HealthWarning, HealthCritical}

// RiskCategory buckets a risk score
type RiskCategory string

const (
	RiskHigh   RiskCategory = "High"
	RiskMedium RiskCategory = "Medium"
	RiskLow    RiskCategory = "Low"
)

// RiskCategories lists categories from most to least severe
var RiskCategories = []RiskCategory{RiskHigh, RiskMedium, RiskLow}

// Rank orders categories so the highest risk compares greatest
func (c RiskCategory) Rank() int {
	switch c {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

const (
	daysPerYear = 365.25

	planningHorizonDays = 730
	warningHorizonDays  = 365
	criticalHorizonDays = 180
)

// Truncate returns midnight UTC of the calendar date of t
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the signed number of calendar days from today to date.
// Both are compared as calendar dates, so the time of day does not matter.
func DaysUntil(date, today time.Time) int {
	return int(Truncate(date).Sub(Truncate(today)).Hours() / 24)
}

// DaysPtr is DaysUntil over an optional date
func DaysPtr(date *time.Time, today time.Time) *int {
	if date == nil {
		return nil
	}
	d := DaysUntil(*date, today)
	return &d
}

// Classify maps days to end of support onto a Status. A nil value means
// there is no usable date and the device is Current.
func Classify(daysToEOL *int) Status {
	if daysToEOL == nil {
		return StatusCurrent
	}
	switch d := *daysToEOL; {
	case d <= 0:
		return StatusEndOfSupport
	case d <= criticalHorizonDays:
		return StatusCritical
	case d <= warningHorizonDays:
		return StatusWarning
	case d <= planningHorizonDays:
		return StatusPlanning
	default:
		return StatusCurrent
	}
}

// Categorize returns the dashboard health bucket using fractional years
func Categorize(daysToEOL *int) Health {
	if daysToEOL == nil {
		return HealthGood
	}
	years := float64(*daysToEOL) / daysPerYear
	switch {
	case years <= 1:
		return HealthCritical
	case years <= 2:
		return HealthWarning
	default:
		return HealthGood
	}
}

// SupportContribution is the end-of-support share of the risk score
func SupportContribution(daysToEOL *int) int {
	if daysToEOL == nil {
		return 0
	}
	switch d := *daysToEOL; {
	case d <= 0:
		return 70
	case d <= criticalHorizonDays:
		return 60
	case d <= warningHorizonDays:
		return 40
	case d <= planningHorizonDays:
		return 20
	default:
		return 0
	}
}

// SaleContribution is the end-of-sale share of the risk score
func SaleContribution(daysToEndOfSale *int) int {
	if daysToEndOfSale == nil {
		return 0
	}
	switch d := *daysToEndOfSale; {
	case d <= 0:
		return 25
	case d <= criticalHorizonDays:
		return 20
	case d <= warningHorizonDays:
		return 15
	default:
		return 0
	}
}

// RiskScore combines both contributions, capped at 100
func RiskScore(daysToEOL, daysToEndOfSale *int) int {
	return min(SupportContribution(daysToEOL)+SaleContribution(daysToEndOfSale), 100)
}

// ComputeRisk scores a device from its days to end of support and an
// optional end-of-sale date.
func ComputeRisk(daysToEOL *int, endOfSale *time.Time, today time.Time) int {
	return RiskScore(daysToEOL, DaysPtr(endOfSale, today))
}

// CategoryFor buckets a risk score
func CategoryFor(score int) RiskCategory {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
