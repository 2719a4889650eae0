package planner

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
)

// DefaultHighRiskLimit caps the high-risk device listing
const DefaultHighRiskLimit = 10

// RiskDistribution counts devices per risk category, every category present
func RiskDistribution(assessments []Assessment) map[lifecycle.RiskCategory]int {
	out := make(map[lifecycle.RiskCategory]int, len(lifecycle.RiskCategories))
	for _, c := range lifecycle.RiskCategories {
		out[c] = 0
	}
	for _, a := range assessments {
		out[a.RiskCategory]++
	}
	return out
}

// LifecycleDistribution counts devices per lifecycle status
func LifecycleDistribution(assessments []Assessment) map[lifecycle.Status]int {
	out := make(map[lifecycle.Status]int, len(lifecycle.Statuses))
	for _, s := range lifecycle.Statuses {
		out[s] = 0
	}
	for _, a := range assessments {
		out[a.Status]++
	}
	return out
}

// HealthDistribution counts devices per dashboard health bucket
func HealthDistribution(assessments []Assessment) map[lifecycle.Health]int {
	out := make(map[lifecycle.Health]int, len(lifecycle.HealthBuckets))
	for _, h := range lifecycle.HealthBuckets {
		out[h] = 0
	}
	for _, a := range assessments {
		out[a.Health]++
	}
	return out
}

// BudgetLine is the planned spend of one calendar year
type BudgetLine struct {
	Year      int     `json:"year"`
	Amount    float64 `json:"amount"`
	Formatted string  `json:"formatted"`
}

// FormatMoney renders an amount as dollars with thousands separators
func FormatMoney(amount float64) string {
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// BudgetForecast sums wave hardware cost by the calendar year each wave starts in
func BudgetForecast(waves []*Wave) []BudgetLine {
	byYear := make(map[int]float64)
	for _, w := range waves {
		byYear[w.Start.Year()] += w.TotalCost
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]BudgetLine, 0, len(years))
	for _, y := range years {
		out = append(out, BudgetLine{Year: y, Amount: byYear[y], Formatted: FormatMoney(byYear[y])})
	}
	return out
}

// NetworkSummary is the refresh picture of one network
type NetworkSummary struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	TotalDevices    int     `json:"total_devices"`
	HighRisk        int     `json:"high_risk"`
	MediumRisk      int     `json:"medium_risk"`
	EndOfSupport    int     `json:"eol_devices"`
	ApproachingEOL  int     `json:"approaching_eol"`
	AvgRisk         float64 `json:"avg_risk"`
	ReplacementCost float64 `json:"replacement_cost"`
	Critical        bool    `json:"critical_status"`
}

// NetworkSummaries groups network-assigned devices by network, ordered by
// network id. Unknown networks are labelled from their id.
func NetworkSummaries(assessments []Assessment, networks []model.Network) []NetworkSummary {
	names := make(map[string]string, len(networks))
	for _, n := range networks {
		names[n.ID] = n.DisplayName()
	}

	byNetwork := make(map[string]*NetworkSummary)
	var ids []string
	for _, a := range assessments {
		if a.NetworkID == "" {
			continue
		}
		s, ok := byNetwork[a.NetworkID]
		if !ok {
			name, known := names[a.NetworkID]
			if !known {
				name = model.Network{ID: a.NetworkID}.DisplayName()
			}
			s = &NetworkSummary{ID: a.NetworkID, Name: name}
			byNetwork[a.NetworkID] = s
			ids = append(ids, a.NetworkID)
		}

		s.TotalDevices++
		switch a.RiskCategory {
		case lifecycle.RiskHigh:
			s.HighRisk++
		case lifecycle.RiskMedium:
			s.MediumRisk++
		}
		switch a.Status {
		case lifecycle.StatusEndOfSupport:
			s.EndOfSupport++
		case lifecycle.StatusCritical, lifecycle.StatusWarning:
			s.ApproachingEOL++
		}
		s.AvgRisk += float64(a.RiskScore)
		s.ReplacementCost += a.HardwareCost()
	}

	sort.Strings(ids)
	out := make([]NetworkSummary, 0, len(ids))
	for _, id := range ids {
		s := byNetwork[id]
		s.AvgRisk /= float64(s.TotalDevices)
		s.Critical = s.HighRisk > 0 || s.EndOfSupport > 0
		out = append(out, *s)
	}
	return out
}

// HighRisk returns up to limit network-assigned devices, riskiest first
func HighRisk(assessments []Assessment, limit int) []Assessment {
	var out []Assessment
	for _, a := range assessments {
		if a.NetworkID != "" {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FamilyModels lists the models seen in one family
type FamilyModels struct {
	Count        int      `json:"count"`
	UniqueModels int      `json:"unique_models"`
	Models       []string `json:"models"`
}

// ModelsByFamily groups inventory models by family
func ModelsByFamily(assessments []Assessment) map[model.Family]FamilyModels {
	seen := make(map[model.Family]map[string]bool)
	counts := make(map[model.Family]int)
	for _, a := range assessments {
		if seen[a.Family] == nil {
			seen[a.Family] = make(map[string]bool)
		}
		seen[a.Family][a.Model] = true
		counts[a.Family]++
	}

	out := make(map[model.Family]FamilyModels, len(seen))
	for f, models := range seen {
		list := make([]string, 0, len(models))
		for m := range models {
			list = append(list, m)
		}
		sort.Strings(list)
		out[f] = FamilyModels{Count: counts[f], UniqueModels: len(list), Models: list}
	}
	return out
}

// NewModels lists inventory models whose series is absent from the catalog.
// An empty catalog yields nothing.
func NewModels(assessments []Assessment, catalog pricing.Catalog) []string {
	if catalog.Len() == 0 {
		return nil
	}
	known := make(map[string]bool)
	knownSeries := make(map[string]bool)
	for _, models := range catalog {
		for m := range models {
			known[m] = true
			if p, ok := eol.ParseModel(m); ok {
				knownSeries[p.Series()] = true
			}
		}
	}

	found := make(map[string]bool)
	for _, a := range assessments {
		p, ok := eol.ParseModel(a.Model)
		if !ok {
			continue
		}
		if !knownSeries[p.Series()] && !known[a.Model] {
			found[a.Model] = true
		}
	}
	out := make([]string, 0, len(found))
	for m := range found {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// PriceMiss is a replacement model priced without a catalog entry
type PriceMiss struct {
	Model  string         `json:"model"`
	Family string         `json:"family"`
	Source pricing.Source `json:"source"`
	Price  float64        `json:"price"`
	Count  int            `json:"count"`
}

// PriceMisses lists replacement models whose price is an estimate
func PriceMisses(assessments []Assessment) []PriceMiss {
	byModel := make(map[string]*PriceMiss)
	for _, a := range assessments {
		if !a.NeedsReplacement() || !a.Hardware.Source.Miss() {
			continue
		}
		m, ok := byModel[a.Replacement.Model]
		if !ok {
			m = &PriceMiss{
				Model:  a.Replacement.Model,
				Family: a.Hardware.Family,
				Source: a.Hardware.Source,
				Price:  a.Hardware.Price,
			}
			byModel[a.Replacement.Model] = m
		}
		m.Count++
	}
	out := make([]PriceMiss, 0, len(byModel))
	for _, m := range byModel {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// ModelLine summarizes one replacement model within a wave
type ModelLine struct {
	Replacement    string       `json:"replacement_model"`
	Family         model.Family `json:"family"`
	Count          int          `json:"count"`
	OriginalModels []string     `json:"original_models"`
	HardwareCost   float64      `json:"hardware_cost"`
	LicenseCost    float64      `json:"license_cost"`
	UnitTotal      float64      `json:"unit_total"`
	TotalCost      float64      `json:"total_cost"`
}

// ModelSummary groups the wave by replacement model, ordered by family then
// count descending.
func (w *Wave) ModelSummary() []ModelLine {
	byModel := make(map[string]*ModelLine)
	originals := make(map[string]map[string]bool)
	for _, a := range w.Devices {
		key := a.Replacement.Model
		line, ok := byModel[key]
		if !ok {
			line = &ModelLine{
				Replacement:  key,
				Family:       a.Family,
				HardwareCost: a.HardwareCost(),
				LicenseCost:  a.LicenseCost,
				UnitTotal:    a.TotalCost(),
			}
			byModel[key] = line
			originals[key] = make(map[string]bool)
		}
		line.Count++
		originals[key][a.Model] = true
	}

	out := make([]ModelLine, 0, len(byModel))
	for key, line := range byModel {
		for m := range originals[key] {
			line.OriginalModels = append(line.OriginalModels, m)
		}
		sort.Strings(line.OriginalModels)
		line.TotalCost = line.UnitTotal * float64(line.Count)
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Replacement < out[j].Replacement
	})
	return out
}

// WaveSummary is the reporting view of a wave
type WaveSummary struct {
	Name        string         `json:"name"`
	Start       time.Time      `json:"start_date"`
	End         time.Time      `json:"end_date"`
	DeviceCount int            `json:"device_count"`
	TotalCost   float64        `json:"total_cost"`
	RiskLevel   string         `json:"risk_level"`
	Families    map[string]int `json:"device_families"`
	Models      []ModelLine    `json:"models,omitempty"`
}

// Summary counts the wave's devices per family display name
func (w *Wave) Summary() WaveSummary {
	families := make(map[string]int)
	for _, a := range w.Devices {
		families[a.Family.DisplayName()]++
	}
	return WaveSummary{
		Name:        w.Name,
		Start:       w.Start,
		End:         w.End,
		DeviceCount: len(w.Devices),
		TotalCost:   w.TotalCost,
		RiskLevel:   string(w.RiskLevel),
		Families:    families,
		Models:      w.ModelSummary(),
	}
}

// Report bundles every aggregate view of one planning run
type Report struct {
	Today         time.Time                      `json:"today"`
	ForecastYears int                            `json:"forecast_years"`
	WavesPerYear  int                            `json:"waves_per_year"`
	DeviceCount   int                            `json:"device_count"`
	Planned       int                            `json:"planned_devices"`
	TotalCost     float64                        `json:"total_cost"`
	Waves         []WaveSummary                  `json:"waves"`
	Risk          map[lifecycle.RiskCategory]int `json:"risk_distribution"`
	Lifecycle     map[lifecycle.Status]int       `json:"lifecycle_distribution"`
	Health        map[lifecycle.Health]int       `json:"health_distribution"`
	Budget        []BudgetLine                   `json:"budget_forecast"`
	Networks      []NetworkSummary               `json:"networks"`
	HighRisk      []Assessment                   `json:"high_risk_devices"`
	Families      map[model.Family]FamilyModels  `json:"models_by_family"`
	NewModels     []string                       `json:"new_models"`
	PriceMisses   []PriceMiss                    `json:"price_misses"`
}

// BuildReport plans the assessments and gathers every report over the result
func BuildReport(assessments []Assessment, networks []model.Network, catalog pricing.Catalog, today time.Time, years, perYear int) (*Report, error) {
	waves, err := Plan(assessments, today, years, perYear)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Today:         lifecycle.Truncate(today),
		ForecastYears: years,
		WavesPerYear:  perYear,
		DeviceCount:   len(assessments),
		Risk:          RiskDistribution(assessments),
		Lifecycle:     LifecycleDistribution(assessments),
		Health:        HealthDistribution(assessments),
		Budget:        BudgetForecast(waves),
		Networks:      NetworkSummaries(assessments, networks),
		HighRisk:      HighRisk(assessments, DefaultHighRiskLimit),
		Families:      ModelsByFamily(assessments),
		NewModels:     NewModels(assessments, catalog),
		PriceMisses:   PriceMisses(assessments),
	}
	for _, w := range waves {
		r.Waves = append(r.Waves, w.Summary())
		r.Planned += len(w.Devices)
		r.TotalCost += w.TotalCost
	}
	return r, nil
}

// reportSections selects one view of a report
var reportSections = map[string]func(*Report) any{
	"risk":         func(r *Report) any { return r.Risk },
	"lifecycle":    func(r *Report) any { return r.Lifecycle },
	"health":       func(r *Report) any { return r.Health },
	"budget":       func(r *Report) any { return nonNil(r.Budget) },
	"networks":     func(r *Report) any { return nonNil(r.Networks) },
	"high-risk":    func(r *Report) any { return nonNil(r.HighRisk) },
	"models":       func(r *Report) any { return r.Families },
	"new-models":   func(r *Report) any { return nonNil(r.NewModels) },
	"price-misses": func(r *Report) any { return nonNil(r.PriceMisses) },
	"waves":        func(r *Report) any { return nonNil(r.Waves) },
}

// ReportKinds lists the section names accepted by Section
func ReportKinds() []string {
	return slices.Sorted(maps.Keys(reportSections))
}

// Section returns one named view of the report. Empty lists are returned as
// empty slices so they encode as [] rather than null.
func (r *Report) Section(kind string) (any, bool) {
	f, ok := reportSections[kind]
	if !ok {
		return nil, false
	}
	return f(r), true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
