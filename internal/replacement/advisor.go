// Package replacement recommends current-generation replacements for aging
// hardware from a declarative rule set.
package replacement

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
)

// NoReplacement is the sentinel shown when a device does not need replacing
const NoReplacement = "No replacement needed"

// Reason records which rule produced a recommendation
type Reason string

const (
	ReasonCurrentGeneration Reason = "current-generation"
	ReasonCatalyst          Reason = "catalyst"
	ReasonOutsideWindow     Reason = "outside-planning-window"
	ReasonSelf              Reason = "self-replacement"
	ReasonUnknownFamily     Reason = "unknown-family"
	ReasonMigration         Reason = "migration"
	ReasonUsage             Reason = "usage-upgrade"
	ReasonMapping           Reason = "mapping"
	ReasonSeriesDefault     Reason = "series-default"
	ReasonSeries            Reason = "series"
	ReasonFamilyDefault     Reason = "family-default"
)

// Recommendation is the outcome of Recommend. An empty Model means none.
type Recommendation struct {
	Model  string `json:"model,omitempty"`
	Reason Reason `json:"reason"`
}

// Needed reports whether a replacement was recommended
func (r Recommendation) Needed() bool {
	return r.Model != ""
}

// String returns the model or the no-replacement sentinel
func (r Recommendation) String() string {
	if r.Model == "" {
		return NoReplacement
	}
	return r.Model
}

// Input carries everything Recommend looks at
type Input struct {
	Model     string
	DaysToEOL *int
	Usage     *model.Usage
}

// Advisor applies a rule set. It holds no mutable state.
type Advisor struct {
	rules       *Rules
	window      int
	current     map[string]bool
	poe         map[string]bool
	mapping     map[string]string
	mappingKeys []string
}

// Option configures an Advisor
type Option func(*Advisor)

// WithPlanningWindow overrides the rule set's planning window in days
func WithPlanningWindow(days int) Option {
	return func(a *Advisor) {
		if days > 0 {
			a.window = days
		}
	}
}

// NewAdvisor builds an Advisor. A nil rule set uses DefaultRules.
func NewAdvisor(rules *Rules, opts ...Option) *Advisor {
	if rules == nil {
		rules = DefaultRules()
	}
	a := &Advisor{
		rules:   rules,
		window:  rules.PlanningWindowDays,
		current: make(map[string]bool, len(rules.CurrentGeneration)),
		poe:     make(map[string]bool, len(rules.PoEVariants)),
		mapping: make(map[string]string, len(rules.Replacements)),
	}
	if a.window <= 0 {
		a.window = DefaultPlanningWindowDays
	}
	for _, m := range rules.CurrentGeneration {
		a.current[eol.Normalize(m)] = true
	}
	for _, v := range rules.PoEVariants {
		a.poe[eol.Normalize(v)] = true
	}
	for k, v := range rules.Replacements {
		a.mapping[eol.Normalize(k)] = eol.Normalize(v)
	}
	for k := range a.mapping {
		a.mappingKeys = append(a.mappingKeys, k)
	}
	sort.Strings(a.mappingKeys)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PlanningWindow returns the window in days
func (a *Advisor) PlanningWindow() int {
	return a.window
}

// Rules returns the rule set in use
func (a *Advisor) Rules() *Rules {
	return a.rules
}

// Recommend picks a replacement model:
//
//   - Catalyst switches and current-generation models are never replaced
//   - mandatory series migrations apply regardless of end-of-support timing
//   - a known end of support beyond the planning window means no replacement
//   - usage upgrades, then the mapping table, then per-series defaults,
//     then a series-level mapping match, then the family default
//
// The result never equals the input model.
func (a *Advisor) Recommend(in Input) Recommendation {
	p, ok := eol.ParseModel(in.Model)
	if !ok {
		return Recommendation{Reason: ReasonUnknownFamily}
	}
	family := eol.FamilyOfParsed(p)

	if eol.IsSwitchSubBrand(p) {
		return Recommendation{Reason: ReasonCatalyst}
	}
	if a.current[p.Raw] {
		return Recommendation{Reason: ReasonCurrentGeneration}
	}

	if target, ok := a.migrate(p); ok {
		return a.finish(p, target, ReasonMigration)
	}

	if in.DaysToEOL != nil && *in.DaysToEOL > a.window {
		return Recommendation{Reason: ReasonOutsideWindow}
	}

	if target, ok := a.upgrade(p, family, in.Usage); ok {
		return a.finish(p, a.correct(p, family, target), ReasonUsage)
	}

	if target, ok := a.mapping[p.Raw]; ok {
		return a.finish(p, a.correct(p, family, target), ReasonMapping)
	}

	if target, ok := a.rules.SeriesDefaults[p.Series()]; ok {
		return a.finish(p, eol.Normalize(target), ReasonSeriesDefault)
	}

	if target, ok := a.seriesMatch(p); ok {
		return a.finish(p, a.correct(p, family, target), ReasonSeries)
	}

	if target, ok := a.rules.FamilyDefaults[family]; ok {
		return a.finish(p, eol.Normalize(target), ReasonFamilyDefault)
	}
	return Recommendation{Reason: ReasonUnknownFamily}
}

func (a *Advisor) finish(p eol.ParsedModel, target string, reason Reason) Recommendation {
	if target == "" || target == p.Raw {
		return Recommendation{Reason: ReasonSelf}
	}
	return Recommendation{Model: target, Reason: reason}
}

// migrate applies the first matching mandatory series migration
func (a *Advisor) migrate(p eol.ParsedModel) (string, bool) {
	number, err := strconv.Atoi(p.Number)
	if err != nil {
		return "", false
	}
	ports, _ := strconv.Atoi(p.Size)

	for _, m := range a.rules.Migrations {
		if m.Prefix != p.Family {
			continue
		}
		if len(m.Numbers) > 0 {
			if !slices.Contains(m.Numbers, number) {
				continue
			}
		} else if number < m.MinNumber {
			continue
		}

		target := ""
		for _, tier := range m.Tiers {
			if tier.MaxPorts == 0 || ports <= tier.MaxPorts {
				target = eol.Normalize(tier.Target)
				break
			}
		}
		if target == "" {
			continue
		}

		tp, ok := eol.ParseModel(target)
		if !ok || !tp.HasSize() || tp.Variant != "" || p.Variant == "" {
			return target, true
		}
		switch {
		case strings.Contains(p.Variant, "X") && m.MultigigSuffix != "":
			return tp.WithVariant(m.MultigigSuffix), true
		case a.poe[p.Variant] && m.PoESuffix != "":
			return tp.WithVariant(m.PoESuffix), true
		}
		return target, true
	}
	return "", false
}

// upgrade applies the first usage upgrade whose threshold is exceeded
func (a *Advisor) upgrade(p eol.ParsedModel, family model.Family, usage *model.Usage) (string, bool) {
	if usage == nil {
		return "", false
	}
	for _, u := range a.rules.UsageUpgrades {
		if u.Family != family || u.value(usage) <= u.Above {
			continue
		}
		for _, m := range u.Models {
			if eol.Normalize(m) == p.Raw {
				return eol.Normalize(u.Target), true
			}
		}
	}
	return "", false
}

// seriesMatch finds the first mapping entry of the same series and carries
// the model's own suffix over to the replacement series.
func (a *Advisor) seriesMatch(p eol.ParsedModel) (string, bool) {
	for _, key := range a.mappingKeys {
		kp, ok := eol.ParseModel(key)
		if !ok || kp.Series() != p.Series() {
			continue
		}
		rp, ok := eol.ParseModel(a.mapping[key])
		if !ok {
			return a.mapping[key], true
		}
		return rp.Series() + p.Suffix(), true
	}
	return "", false
}

// correct runs the form-factor and product-line passes over a raw target
func (a *Advisor) correct(p eol.ParsedModel, family model.Family, target string) string {
	target = a.preservePoE(p, target)
	if family == model.FamilyMR {
		if cw, ok := a.rules.WirelessPreference[target]; ok {
			target = eol.Normalize(cw)
		}
	}
	return target
}

// preservePoE gives the target the original's PoE variant when the target
// has a port count but no variant of its own.
func (a *Advisor) preservePoE(p eol.ParsedModel, target string) string {
	if !p.HasSize() || !a.poe[p.Variant] {
		return target
	}
	tp, ok := eol.ParseModel(target)
	if !ok || !tp.HasSize() || tp.Variant != "" {
		return target
	}
	variant := p.Variant
	if v, ok := a.rules.VariantNormalization[tp.Family]; ok {
		variant = v
	}
	return tp.WithVariant(variant)
}
