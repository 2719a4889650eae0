package planner

import (
	"errors"
	"testing"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
	"github.com/martinsuchenak/lifecycled/internal/model"
)

func testTable() *eol.Table {
	in := func(n int) string { return eol.FormatDate(today.AddDate(0, 0, n)) }
	return eol.NewTable(map[string]model.EOLRecord{
		"MX64":    {EndOfSale: "Jan 1, 2024", EndOfSupport: in(500)},
		"MS220-8": {EndOfSupport: in(90)},
		"MR42":    {EndOfSale: "Jan 1, 2020", EndOfSupport: in(-30)},
		"MV21":    {EndOfSupport: "soon"},
	})
}

func TestAnalyzer_Assess(t *testing.T) {
	a := NewAnalyzer(testTable(), nil, nil)

	tests := []struct {
		name        string
		device      model.Device
		key         string
		rule        eol.Rule
		status      lifecycle.Status
		health      lifecycle.Health
		risk        int
		category    lifecycle.RiskCategory
		family      model.Family
		replacement string
	}{
		{
			name:   "planning with end of sale past",
			device: model.Device{Serial: "Q1", Model: "MX64"},
			key:    "MX64", rule: eol.RuleExact,
			status: lifecycle.StatusPlanning, health: lifecycle.HealthWarning,
			risk: 45, category: lifecycle.RiskMedium,
			family: model.FamilyMX, replacement: "MX75",
		},
		{
			name:   "suffix stripped match",
			device: model.Device{Serial: "Q2", Model: "ms220-8p"},
			key:    "MS220-8", rule: eol.RuleStripped,
			status: lifecycle.StatusCritical, health: lifecycle.HealthCritical,
			risk: 60, category: lifecycle.RiskMedium,
			family: model.FamilyMS, replacement: "MS120-8P",
		},
		{
			name:   "end of support",
			device: model.Device{Serial: "Q3", Model: "MR42"},
			key:    "MR42", rule: eol.RuleExact,
			status: lifecycle.StatusEndOfSupport, health: lifecycle.HealthCritical,
			risk: 95, category: lifecycle.RiskHigh,
			family: model.FamilyMR, replacement: "CW9166I-MR",
		},
		{
			name:   "malformed date is current",
			device: model.Device{Serial: "Q4", Model: "MV21"},
			key:    "MV21", rule: eol.RuleExact,
			status: lifecycle.StatusCurrent, health: lifecycle.HealthGood,
			risk: 0, category: lifecycle.RiskLow,
			family: model.FamilyMV, replacement: "MV32",
		},
		{
			name:   "unknown model",
			device: model.Device{Serial: "Q5", Model: "GS110-8P"},
			status: lifecycle.StatusCurrent, health: lifecycle.HealthGood,
			risk: 0, category: lifecycle.RiskLow,
			family: model.FamilyOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Assess(tt.device, today)
			if err != nil {
				t.Fatalf("Assess() error = %v", err)
			}
			if got.MatchKey != tt.key || got.MatchRule != tt.rule {
				t.Errorf("match = %q (%s), want %q (%s)", got.MatchKey, got.MatchRule, tt.key, tt.rule)
			}
			if got.Status != tt.status || got.Health != tt.health {
				t.Errorf("status = %s/%s, want %s/%s", got.Status, got.Health, tt.status, tt.health)
			}
			if got.RiskScore != tt.risk || got.RiskCategory != tt.category {
				t.Errorf("risk = %d %s, want %d %s", got.RiskScore, got.RiskCategory, tt.risk, tt.category)
			}
			if got.Family != tt.family {
				t.Errorf("family = %s, want %s", got.Family, tt.family)
			}
			if got.Replacement.Model != tt.replacement {
				t.Errorf("replacement = %q, want %q", got.Replacement.Model, tt.replacement)
			}
			if got.NeedsReplacement() && (got.HardwareCost() <= 0 || got.LicenseCost <= 0) {
				t.Errorf("replacement %s priced at %.2f + %.2f", got.Replacement.Model, got.HardwareCost(), got.LicenseCost)
			}
			if !got.NeedsReplacement() && got.TotalCost() != 0 {
				t.Errorf("TotalCost() = %.2f without a replacement", got.TotalCost())
			}
		})
	}
}

func TestAnalyzer_AssessInvalid(t *testing.T) {
	a := NewAnalyzer(testTable(), nil, nil)
	for _, d := range []model.Device{{Serial: "Q1"}, {Model: "MX64"}, {Serial: " ", Model: "MX64"}} {
		if _, err := a.Assess(d, today); !errors.Is(err, model.ErrInvalidDeviceRecord) {
			t.Errorf("Assess(%+v) error = %v, want ErrInvalidDeviceRecord", d, err)
		}
	}
	if _, err := a.AssessAll([]model.Device{{Serial: "Q1", Model: "MX64"}, {Serial: "Q2"}}, today); !errors.Is(err, model.ErrInvalidDeviceRecord) {
		t.Errorf("AssessAll() error = %v, want ErrInvalidDeviceRecord", err)
	}
}

func TestAnalyzer_Usage(t *testing.T) {
	a := NewAnalyzer(eol.NewTable(map[string]model.EOLRecord{
		"MX67": {EndOfSupport: eol.FormatDate(today.AddDate(1, 0, 0))},
	}), nil, nil)
	got, err := a.Assess(model.Device{Serial: "Q1", Model: "MX67", Usage: &model.Usage{ThroughputMbps: 1500}}, today)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if got.Replacement.Model != "MX85" {
		t.Errorf("replacement = %q, want MX85", got.Replacement.Model)
	}
}

func TestWithLicenseType(t *testing.T) {
	ent := NewAnalyzer(testTable(), nil, nil)
	adv := NewAnalyzer(testTable(), nil, nil, WithLicenseType("ADV"))
	d := model.Device{Serial: "Q1", Model: "MX64"}

	e, _ := ent.Assess(d, today)
	v, _ := adv.Assess(d, today)
	if e.LicenseCost == v.LicenseCost {
		t.Errorf("license cost %.2f should differ between ENT and ADV", e.LicenseCost)
	}
}
