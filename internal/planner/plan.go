package planner

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
)

// ErrInvalidHorizon is returned for a planning shape that cannot be laid out
// as whole-month waves.
var ErrInvalidHorizon = errors.New("invalid planning horizon")

const (
	DefaultForecastYears = 3
	DefaultWavesPerYear  = 4
	MaxForecastYears     = 10

	// devices closer than this to end of support are placed by date
	scheduledHorizonDays = 730
	// replacement is planned this many months ahead of end of support
	leadMonths = 3
	// age proxy for devices without a usable end-of-support date
	ageProxyDays = 1825
)

// Wave is one time box of a refresh plan
type Wave struct {
	Name      string                 `json:"name"`
	Start     time.Time              `json:"start_date"`
	End       time.Time              `json:"end_date"`
	Devices   []Assessment           `json:"devices"`
	TotalCost float64                `json:"total_cost"`
	RiskLevel lifecycle.RiskCategory `json:"risk_level"`
}

// Contains reports whether the date falls inside the wave, both ends included
func (w *Wave) Contains(t time.Time) bool {
	d := lifecycle.Truncate(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Midpoint returns the instant halfway between start and end
func (w *Wave) Midpoint() time.Time {
	return w.Start.Add(w.End.Sub(w.Start) / 2)
}

func (w *Wave) add(a Assessment) {
	w.Devices = append(w.Devices, a)
	w.TotalCost += a.HardwareCost()
	if a.RiskCategory.Rank() > w.RiskLevel.Rank() {
		w.RiskLevel = a.RiskCategory
	}
}

// NewWaves lays out years*perYear empty, contiguous waves starting on Jan 1
// of today's year.
func NewWaves(today time.Time, years, perYear int) ([]*Wave, error) {
	if years < 1 || years > MaxForecastYears || perYear < 1 || perYear > 12 || 12%perYear != 0 {
		return nil, fmt.Errorf("%w: %d years x %d waves per year", ErrInvalidHorizon, years, perYear)
	}
	months := 12 / perYear
	first := time.Date(lifecycle.Truncate(today).Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	waves := make([]*Wave, 0, years*perYear)
	for y := range years {
		for w := range perYear {
			start := first.AddDate(y, w*months, 0)
			waves = append(waves, &Wave{
				Name:      fmt.Sprintf("Wave %d.%d", y+1, w+1),
				Start:     start,
				End:       start.AddDate(0, months, -1),
				RiskLevel: lifecycle.RiskLow,
			})
		}
	}
	return waves, nil
}

// Plan assigns every assessment that needs a replacement to exactly one
// wave. Devices within two years of end of support are placed by their
// target date; the rest are spread over open waves by risk.
func Plan(assessments []Assessment, today time.Time, years, perYear int) ([]*Wave, error) {
	waves, err := NewWaves(today, years, perYear)
	if err != nil {
		return nil, err
	}
	today = lifecycle.Truncate(today)

	seen := make(map[string]bool)
	var deferred []Assessment
	for _, a := range assessments {
		if !a.NeedsReplacement() || seen[a.Serial] {
			continue
		}
		seen[a.Serial] = true

		if a.DaysToEOL == nil || *a.DaysToEOL >= scheduledHorizonDays {
			deferred = append(deferred, a)
			continue
		}
		target := today
		if *a.DaysToEOL > 0 && a.EndOfSupport != nil {
			target = addMonths(*a.EndOfSupport, -leadMonths)
		}
		waveFor(waves, target).add(a)
	}

	sort.SliceStable(deferred, func(i, j int) bool {
		a, b := deferred[i], deferred[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if pa, pb := ageProxy(a), ageProxy(b); pa != pb {
			return pa < pb
		}
		return a.Serial < b.Serial
	})

	var open []*Wave
	for _, w := range waves {
		if !w.End.Before(today) {
			open = append(open, w)
		}
	}
	for _, a := range deferred {
		candidates := open
		if a.EndOfSupport != nil {
			target := addMonths(*a.EndOfSupport, -leadMonths)
			var early []*Wave
			for _, w := range open {
				if !w.Start.After(target) {
					early = append(early, w)
				}
			}
			if len(early) > 0 {
				candidates = early
			}
		}
		leastLoaded(candidates).add(a)
	}
	return waves, nil
}

// waveFor returns the wave containing target, else the one whose midpoint is
// nearest, earliest first on ties.
func waveFor(waves []*Wave, target time.Time) *Wave {
	for _, w := range waves {
		if w.Contains(target) {
			return w
		}
	}
	best := waves[0]
	bestDist := absDuration(best.Midpoint().Sub(target))
	for _, w := range waves[1:] {
		if d := absDuration(w.Midpoint().Sub(target)); d < bestDist {
			best, bestDist = w, d
		}
	}
	return best
}

func leastLoaded(waves []*Wave) *Wave {
	best := waves[0]
	for _, w := range waves[1:] {
		if len(w.Devices) < len(best.Devices) {
			best = w
		}
	}
	return best
}

func ageProxy(a Assessment) int {
	if a.DaysToEOL == nil {
		return ageProxyDays
	}
	return min(*a.DaysToEOL, ageProxyDays)
}

// addMonths shifts by whole months, clamping to the last day of the target
// month (May 31 minus three months is Feb 28).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(d, last), 0, 0, 0, 0, time.UTC)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
