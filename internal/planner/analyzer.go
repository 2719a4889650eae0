// Package planner turns inventory records into lifecycle assessments and
// schedules the devices that need replacing into refresh waves.
package planner

import (
	"time"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
	"github.com/martinsuchenak/lifecycled/internal/replacement"
)

// Assessment is everything derived for one device on a given day
type Assessment struct {
	Serial       string                     `json:"serial"`
	Name         string                     `json:"name,omitempty"`
	Model        string                     `json:"model"`
	NetworkID    string                     `json:"network_id,omitempty"`
	Family       model.Family               `json:"family"`
	MatchKey     string                     `json:"match_key,omitempty"`
	MatchRule    eol.Rule                   `json:"match_rule,omitempty"`
	Record       *model.EOLRecord           `json:"eol,omitempty"`
	EndOfSupport *time.Time                 `json:"end_of_support,omitempty"`
	EndOfSale    *time.Time                 `json:"end_of_sale,omitempty"`
	DaysToEOL    *int                       `json:"days_to_eol,omitempty"`
	Status       lifecycle.Status           `json:"lifecycle_status"`
	Health       lifecycle.Health           `json:"health"`
	RiskScore    int                        `json:"risk_score"`
	RiskCategory lifecycle.RiskCategory     `json:"risk_category"`
	Replacement  replacement.Recommendation `json:"replacement"`
	Hardware     pricing.Quote              `json:"hardware"`
	LicenseCost  float64                    `json:"license_cost,omitempty"`
}

// NeedsReplacement reports whether the advisor recommended a model
func (a Assessment) NeedsReplacement() bool {
	return a.Replacement.Needed()
}

// HardwareCost is the unit price of the replacement, zero when none is needed
func (a Assessment) HardwareCost() float64 {
	if !a.NeedsReplacement() {
		return 0
	}
	return a.Hardware.Price
}

// TotalCost is hardware plus one year of license
func (a Assessment) TotalCost() float64 {
	if !a.NeedsReplacement() {
		return 0
	}
	return a.Hardware.Price + a.LicenseCost
}

// Analyzer assesses devices against an EOL table, a replacement rule set and
// a price estimator. It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	table       *eol.Table
	advisor     *replacement.Advisor
	estimator   *pricing.Estimator
	licenseType string
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLicenseType sets the license tier priced for replacements
func WithLicenseType(kind string) Option {
	return func(a *Analyzer) {
		if kind != "" {
			a.licenseType = kind
		}
	}
}

// NewAnalyzer builds an Analyzer. Nil collaborators fall back to the
// built-in EOL table, rules and prices.
func NewAnalyzer(table *eol.Table, advisor *replacement.Advisor, estimator *pricing.Estimator, opts ...Option) *Analyzer {
	if table == nil {
		table = eol.DefaultTable()
	}
	if advisor == nil {
		advisor = replacement.NewAdvisor(nil)
	}
	if estimator == nil {
		estimator = pricing.NewEstimator(nil)
	}
	a := &Analyzer{
		table:       table,
		advisor:     advisor,
		estimator:   estimator,
		licenseType: pricing.DefaultLicenseType,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Table returns the EOL table in use
func (a *Analyzer) Table() *eol.Table { return a.table }

// Advisor returns the replacement advisor in use
func (a *Analyzer) Advisor() *replacement.Advisor { return a.advisor }

// Estimator returns the price estimator in use
func (a *Analyzer) Estimator() *pricing.Estimator { return a.estimator }

// Assess derives the lifecycle picture of one device. Only records without a
// serial or model are rejected.
func (a *Analyzer) Assess(d model.Device, today time.Time) (Assessment, error) {
	if err := d.Validate(); err != nil {
		return Assessment{}, err
	}

	out := Assessment{
		Serial:    d.Serial,
		Name:      d.Name,
		Model:     eol.Normalize(d.Model),
		NetworkID: d.NetworkID,
		Family:    eol.FamilyOf(d.Model),
	}

	if m, ok := a.table.Resolve(d.Model); ok {
		rec := m.Record
		out.MatchKey, out.MatchRule, out.Record = m.Key, m.Rule, &rec
		out.EndOfSupport = eol.EndOfSupport(&rec)
		out.EndOfSale = eol.EndOfSale(&rec)
	}

	out.DaysToEOL = lifecycle.DaysPtr(out.EndOfSupport, today)
	out.Status = lifecycle.Classify(out.DaysToEOL)
	out.Health = lifecycle.Categorize(out.DaysToEOL)
	out.RiskScore = lifecycle.ComputeRisk(out.DaysToEOL, out.EndOfSale, today)
	out.RiskCategory = lifecycle.CategoryFor(out.RiskScore)

	out.Replacement = a.advisor.Recommend(replacement.Input{
		Model:     d.Model,
		DaysToEOL: out.DaysToEOL,
		Usage:     d.Usage,
	})
	if out.Replacement.Needed() {
		out.Hardware = a.estimator.Hardware(out.Replacement.Model)
		out.LicenseCost = a.estimator.License(out.Replacement.Model, a.licenseType)
	}
	return out, nil
}

// AssessAll assesses an inventory in order, stopping at the first invalid
// record.
func (a *Analyzer) AssessAll(devices []model.Device, today time.Time) ([]Assessment, error) {
	out := make([]Assessment, 0, len(devices))
	for _, d := range devices {
		as, err := a.Assess(d, today)
		if err != nil {
			return nil, err
		}
		out = append(out, as)
	}
	return out, nil
}
