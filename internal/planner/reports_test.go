package planner

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
	"github.com/martinsuchenak/lifecycled/internal/replacement"
)

func withStatus(a Assessment, network string, status lifecycle.Status) Assessment {
	a.NetworkID = network
	a.Status = status
	a.Health = lifecycle.HealthGood
	return a
}

func TestDistributions(t *testing.T) {
	in := []Assessment{
		withStatus(planned("a", days(-1), 95), "", lifecycle.StatusEndOfSupport),
		withStatus(planned("b", days(90), 60), "", lifecycle.StatusCritical),
		withStatus(planned("c", nil, 0), "", lifecycle.StatusCurrent),
	}

	risk := RiskDistribution(in)
	if want := map[lifecycle.RiskCategory]int{lifecycle.RiskHigh: 1, lifecycle.RiskMedium: 1, lifecycle.RiskLow: 1}; !reflect.DeepEqual(risk, want) {
		t.Errorf("RiskDistribution() = %v, want %v", risk, want)
	}

	status := LifecycleDistribution(in)
	if len(status) != 5 || status[lifecycle.StatusEndOfSupport] != 1 || status[lifecycle.StatusPlanning] != 0 {
		t.Errorf("LifecycleDistribution() = %v", status)
	}

	health := HealthDistribution(in)
	if len(health) != 3 || health[lifecycle.HealthGood] != 3 {
		t.Errorf("HealthDistribution() = %v", health)
	}

	if empty := RiskDistribution(nil); len(empty) != 3 {
		t.Errorf("RiskDistribution(nil) = %v, want every category", empty)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{1234.5, "$1,234.50"},
		{1995000, "$1,995,000.00"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.in); got != tt.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBudgetForecast(t *testing.T) {
	waves, err := Plan([]Assessment{
		planned("a", days(-1), 95),
		planned("b", days(-1), 95),
		planned("c", days(400), 20),
	}, today, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	got := BudgetForecast(waves)
	want := []BudgetLine{
		{Year: 2025, Amount: 2000, Formatted: "$2,000.00"},
		{Year: 2026, Amount: 1000, Formatted: "$1,000.00"},
		{Year: 2027, Amount: 0, Formatted: "$0.00"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BudgetForecast() = %+v, want %+v", got, want)
	}
}

func TestNetworkSummaries(t *testing.T) {
	current := planned("b", nil, 0)
	current.Replacement = replacement.Recommendation{Reason: replacement.ReasonCurrentGeneration}

	in := []Assessment{
		withStatus(planned("a", days(-1), 95), "N1", lifecycle.StatusEndOfSupport),
		withStatus(current, "N1", lifecycle.StatusCurrent),
		withStatus(planned("c", days(200), 55), "N2", lifecycle.StatusWarning),
		withStatus(planned("d", days(-1), 95), "", lifecycle.StatusEndOfSupport),
	}
	got := NetworkSummaries(in, []model.Network{{ID: "N1", Name: "HQ"}})
	if len(got) != 2 {
		t.Fatalf("NetworkSummaries() = %d networks, want 2", len(got))
	}

	hq := got[0]
	if hq.ID != "N1" || hq.Name != "HQ" || hq.TotalDevices != 2 || hq.HighRisk != 1 || hq.EndOfSupport != 1 {
		t.Errorf("N1 = %+v", hq)
	}
	if hq.AvgRisk != 47.5 || hq.ReplacementCost != 1000 || !hq.Critical {
		t.Errorf("N1 risk %.1f cost %.0f critical %v", hq.AvgRisk, hq.ReplacementCost, hq.Critical)
	}

	branch := got[1]
	if branch.Name != "Network N2" || branch.MediumRisk != 1 || branch.ApproachingEOL != 1 || branch.Critical {
		t.Errorf("N2 = %+v", branch)
	}
}

func TestHighRisk(t *testing.T) {
	in := []Assessment{
		withStatus(planned("low", nil, 0), "N1", lifecycle.StatusCurrent),
		withStatus(planned("unassigned", days(-1), 95), "", lifecycle.StatusEndOfSupport),
		withStatus(planned("high", days(-1), 95), "N1", lifecycle.StatusEndOfSupport),
		withStatus(planned("mid", days(100), 60), "N2", lifecycle.StatusCritical),
	}
	got := HighRisk(in, 2)
	if len(got) != 2 || got[0].Serial != "high" || got[1].Serial != "mid" {
		t.Errorf("HighRisk() = %v", serials(got))
	}
	if all := HighRisk(in, 0); len(all) != 3 {
		t.Errorf("HighRisk(0) = %d devices, want 3", len(all))
	}
}

func serials(in []Assessment) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = a.Serial
	}
	return out
}

func TestModelsByFamily(t *testing.T) {
	in := []Assessment{
		{Serial: "1", Model: "MX64", Family: model.FamilyMX},
		{Serial: "2", Model: "MX64", Family: model.FamilyMX},
		{Serial: "3", Model: "MX67", Family: model.FamilyMX},
		{Serial: "4", Model: "GS110", Family: model.FamilyOther},
	}
	got := ModelsByFamily(in)
	want := map[model.Family]FamilyModels{
		model.FamilyMX:    {Count: 3, UniqueModels: 2, Models: []string{"MX64", "MX67"}},
		model.FamilyOther: {Count: 1, UniqueModels: 1, Models: []string{"GS110"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ModelsByFamily() = %+v, want %+v", got, want)
	}
}

func TestNewModels(t *testing.T) {
	in := []Assessment{
		{Model: "MX64"},
		{Model: "MX64W"},
		{Model: "MS220-8P"},
		{Model: "MS220-8P"},
		{Model: "GS110"},
	}
	catalog := pricing.Catalog{"MX": {"MX64": 500}}
	if got := NewModels(in, catalog); !reflect.DeepEqual(got, []string{"MS220-8P"}) {
		t.Errorf("NewModels() = %v, want [MS220-8P]", got)
	}
	if got := NewModels(in, nil); got != nil {
		t.Errorf("NewModels(nil) = %v, want nil", got)
	}
}

func TestPriceMisses(t *testing.T) {
	miss := planned("a", nil, 0)
	miss.Replacement.Model = "MX85"
	miss.Hardware = pricing.Quote{Model: "MX85", Family: "MX", Price: 1500, Source: pricing.SourceBuiltin}
	miss2 := miss
	miss2.Serial = "b"

	got := PriceMisses([]Assessment{miss, miss2, planned("c", nil, 0)})
	want := []PriceMiss{{Model: "MX85", Family: "MX", Source: pricing.SourceBuiltin, Price: 1500, Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PriceMisses() = %+v, want %+v", got, want)
	}
}

func TestWave_Summary(t *testing.T) {
	sw := planned("s1", days(-1), 95)
	sw.Model, sw.Family = "MS220-8P", model.FamilyMS
	sw.Replacement.Model = "MS120-8P"
	sw.Hardware = pricing.Quote{Model: "MS120-8P", Family: "MS", Price: 800, Source: pricing.SourceCatalog}
	sw.LicenseCost = 50

	mx65 := planned("m2", days(-1), 95)
	mx65.Model = "MX65"

	w := &Wave{Name: "Wave 1.1", RiskLevel: lifecycle.RiskLow}
	for _, a := range []Assessment{planned("m1", days(-1), 95), mx65, sw} {
		w.add(a)
	}

	lines := w.ModelSummary()
	if len(lines) != 2 {
		t.Fatalf("ModelSummary() = %d lines, want 2", len(lines))
	}
	if lines[0].Replacement != "MS120-8P" || lines[0].TotalCost != 850 {
		t.Errorf("first line = %+v", lines[0])
	}
	mx := lines[1]
	if mx.Count != 2 || !reflect.DeepEqual(mx.OriginalModels, []string{"MX64", "MX65"}) ||
		mx.UnitTotal != 1200 || mx.TotalCost != 2400 {
		t.Errorf("MX75 line = %+v", mx)
	}

	s := w.Summary()
	if s.DeviceCount != 3 || s.TotalCost != 2800 || s.RiskLevel != "High" {
		t.Errorf("Summary() = %+v", s)
	}
	if want := map[string]int{"Security Appliances": 2, "Switches": 1}; !reflect.DeepEqual(s.Families, want) {
		t.Errorf("Families = %v, want %v", s.Families, want)
	}
}

func TestBuildReport(t *testing.T) {
	a := NewAnalyzer(testTable(), nil, nil)
	assessments, err := a.AssessAll([]model.Device{
		{Serial: "Q1", Model: "MX64", NetworkID: "N1"},
		{Serial: "Q2", Model: "MS220-8P", NetworkID: "N1"},
		{Serial: "Q3", Model: "MR42", NetworkID: "N2"},
		{Serial: "Q4", Model: "MX75"},
		{Serial: "Q5", Model: "GS110-8P"},
	}, today)
	if err != nil {
		t.Fatalf("AssessAll() error = %v", err)
	}

	r, err := BuildReport(assessments, []model.Network{{ID: "N1", Name: "HQ"}}, a.Estimator().Catalog(), today, 3, 4)
	if err != nil {
		t.Fatalf("BuildReport() error = %v", err)
	}
	if r.DeviceCount != 5 || r.Planned != 3 || len(r.Waves) != 12 {
		t.Errorf("report devices %d planned %d waves %d", r.DeviceCount, r.Planned, len(r.Waves))
	}

	var budget float64
	for _, b := range r.Budget {
		budget += b.Amount
	}
	if math.Abs(budget-r.TotalCost) > 0.001 || r.TotalCost <= 0 {
		t.Errorf("budget %.2f, total %.2f", budget, r.TotalCost)
	}
	if len(r.Networks) != 2 || len(r.HighRisk) != 3 || r.HighRisk[0].Serial != "Q3" {
		t.Errorf("networks %d high risk %v", len(r.Networks), serials(r.HighRisk))
	}
	if r.Lifecycle[lifecycle.StatusEndOfSupport] != 1 || r.Risk[lifecycle.RiskHigh] != 1 {
		t.Errorf("distributions %v %v", r.Lifecycle, r.Risk)
	}

	if _, err := BuildReport(assessments, nil, nil, today, 3, 5); err == nil {
		t.Error("BuildReport() should reject 5 waves per year")
	}
}

func TestReportSection(t *testing.T) {
	r, err := BuildReport(nil, nil, nil, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), 1, 2)
	if err != nil {
		t.Fatalf("BuildReport() error = %v", err)
	}

	if _, ok := r.Section("slides"); ok {
		t.Error("Section(slides) should not exist")
	}
	waves, ok := r.Section("waves")
	if !ok || len(waves.([]WaveSummary)) != 2 {
		t.Errorf("Section(waves) = %v, %v", waves, ok)
	}
	misses, _ := r.Section("price-misses")
	if got := misses.([]PriceMiss); got == nil || len(got) != 0 {
		t.Errorf("Section(price-misses) = %#v, want empty non-nil slice", got)
	}

	kinds := ReportKinds()
	if len(kinds) != 10 || kinds[0] != "budget" {
		t.Errorf("ReportKinds() = %v", kinds)
	}
}
