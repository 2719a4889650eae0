package replacement

import (
	"errors"
	"strings"
	"testing"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"pgregory.net/rapid"
)

func days(n int) *int { return &n }

func TestAdvisor_Recommend(t *testing.T) {
	advisor := NewAdvisor(nil)

	tests := []struct {
		name   string
		in     Input
		want   string
		reason Reason
	}{
		{"catalyst switch", Input{Model: "C9300-24P", DaysToEOL: days(10)}, "", ReasonCatalyst},
		{"catalyst 9200 is still catalyst", Input{Model: "C9200-48"}, "", ReasonCatalyst},
		{"current generation", Input{Model: "MX75", DaysToEOL: days(10)}, "", ReasonCurrentGeneration},
		{"current generation wireless", Input{Model: "cw9166i-mr"}, "", ReasonCurrentGeneration},
		{"outside planning window", Input{Model: "MX64", DaysToEOL: days(1200)}, "", ReasonOutsideWindow},
		{"inside planning window", Input{Model: "MX64", DaysToEOL: days(500)}, "MX75", ReasonMapping},
		{"absent days still recommends", Input{Model: "MX84"}, "MX85", ReasonMapping},
		{"mandatory migration ignores window", Input{Model: "MS350-48FP", DaysToEOL: days(2000)}, "C9300-48P", ReasonMigration},
		{"migration multigig", Input{Model: "MS355-24X"}, "C9300-24UX", ReasonMigration},
		{"migration 9300X multigig", Input{Model: "MS390-48UX"}, "C9300X-48Y", ReasonMigration},
		{"migration 9300X poe", Input{Model: "MS390-24P"}, "C9300X-24P", ReasonMigration},
		{"migration aggregation small", Input{Model: "MS425-16"}, "C9500-16X", ReasonMigration},
		{"migration aggregation large", Input{Model: "MS410-32"}, "C9500-32C", ReasonMigration},
		{"migration high performance", Input{Model: "MS450-24"}, "C9500-48Y4C", ReasonMigration},
		{"migration no ports defaults to 24", Input{Model: "MS320"}, "C9300-24", ReasonMigration},
		{"mapping keeps poe", Input{Model: "MS220-8P"}, "MS120-8P", ReasonMapping},
		{"mapping to catalyst normalizes poe", Input{Model: "MS250-48LP"}, "C9300-48P", ReasonMapping},
		{"wireless preference", Input{Model: "MR42"}, "CW9166I-MR", ReasonMapping},
		{"wireless preference wifi 6e", Input{Model: "MR53"}, "CW9176I-MR", ReasonMapping},
		{"series default wireless", Input{Model: "MR33"}, "CW9162I-MR", ReasonSeriesDefault},
		{"series default with revision", Input{Model: "MR30H"}, "CW9162I-MR", ReasonSeriesDefault},
		{"series match keeps suffix", Input{Model: "MS220-24LP"}, "MS125-24LP", ReasonSeries},
		{"series match with revision", Input{Model: "Z3C-HW"}, "Z4C-HW", ReasonSeries},
		{"family default", Input{Model: "MV22"}, "MV2", ReasonFamilyDefault},
		{"family default switch", Input{Model: "MS130-24P"}, "C9300-24", ReasonFamilyDefault},
		{"family default is self", Input{Model: "MT14"}, "", ReasonSelf},
		{"unknown family", Input{Model: "GS110-8P"}, "", ReasonUnknownFamily},
		{"usage upgrade throughput", Input{Model: "MX67", Usage: &model.Usage{ThroughputMbps: 1500}}, "MX85", ReasonUsage},
		{"usage upgrade clients", Input{Model: "MX68W", Usage: &model.Usage{ClientCount: 250}}, "MX75", ReasonUsage},
		{"usage below threshold", Input{Model: "MX67", Usage: &model.Usage{ThroughputMbps: 300}}, "MX75", ReasonMapping},
		{"usage upgrade wireless", Input{Model: "MR46", Usage: &model.Usage{WirelessClients: 80}}, "CW9176I-MR", ReasonUsage},
		{"usage upgrade respects window", Input{Model: "MX67", DaysToEOL: days(2000), Usage: &model.Usage{ThroughputMbps: 1500}}, "", ReasonOutsideWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := advisor.Recommend(tt.in)
			if got.Model != tt.want || got.Reason != tt.reason {
				t.Errorf("Recommend(%q) = %q (%s), want %q (%s)", tt.in.Model, got.Model, got.Reason, tt.want, tt.reason)
			}
			if got.Needed() != (tt.want != "") {
				t.Errorf("Needed() = %v", got.Needed())
			}
		})
	}
}

func TestRecommendation_String(t *testing.T) {
	if got := (Recommendation{}).String(); got != NoReplacement {
		t.Errorf("String() = %q, want %q", got, NoReplacement)
	}
	if got := (Recommendation{Model: "MX75"}).String(); got != "MX75" {
		t.Errorf("String() = %q, want MX75", got)
	}
}

func TestWithPlanningWindow(t *testing.T) {
	advisor := NewAdvisor(nil, WithPlanningWindow(365))
	if advisor.PlanningWindow() != 365 {
		t.Fatalf("PlanningWindow() = %d, want 365", advisor.PlanningWindow())
	}
	if got := advisor.Recommend(Input{Model: "MX84", DaysToEOL: days(500)}); got.Needed() {
		t.Errorf("Recommend() = %q, want none outside a 365 day window", got.Model)
	}

	if got := NewAdvisor(nil, WithPlanningWindow(0)).PlanningWindow(); got != DefaultPlanningWindowDays {
		t.Errorf("PlanningWindow() = %d, want default %d", got, DefaultPlanningWindowDays)
	}
}

func TestDecodeRules(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"self mapping", `{"replacements": {"MX64": "mx64"}}`},
		{"migration without tiers", `{"migrations": [{"name": "x", "prefix": "MS"}]}`},
		{"bounded last tier", `{"migrations": [{"name": "x", "prefix": "MS", "tiers": [{"max_ports": 24, "target": "C9300-24"}]}]}`},
		{"unknown metric", `{"usage_upgrades": [{"family": "MX", "metric": "vpn", "above": 1, "target": "MX85"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRules([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidRules) {
				t.Errorf("DecodeRules() error = %v, want ErrInvalidRules", err)
			}
		})
	}

	r, err := LoadRules(strings.NewReader(`{"replacements": {"MX64": "MX75"}, "family_defaults": {"MX": "MX85"}}`))
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	advisor := NewAdvisor(r)
	if got := advisor.Recommend(Input{Model: "MX65"}); got.Model != "MX85" {
		t.Errorf("Recommend(MX65) = %q, want family default MX85", got.Model)
	}
	if advisor.PlanningWindow() != DefaultPlanningWindowDays {
		t.Errorf("PlanningWindow() = %d, want default", advisor.PlanningWindow())
	}
}

// No model in the mapping tables is ever recommended as its own replacement.
func TestRecommendNeverSelfForMappingModels(t *testing.T) {
	advisor := NewAdvisor(nil)
	rules := advisor.Rules()

	var models []string
	models = append(models, rules.MappingKeys()...)
	for _, v := range rules.Replacements {
		models = append(models, v)
	}
	models = append(models, rules.CurrentGeneration...)
	for _, v := range rules.FamilyDefaults {
		models = append(models, v)
	}
	for k, v := range rules.WirelessPreference {
		models = append(models, k, v)
	}

	for _, m := range models {
		for _, d := range []*int{nil, days(-10), days(100), days(5000)} {
			got := advisor.Recommend(Input{Model: m, DaysToEOL: d})
			if got.Model == eol.Normalize(m) {
				t.Errorf("Recommend(%q) returned itself", m)
			}
		}
	}
}

func TestRecommendNeverSelfProperty(t *testing.T) {
	advisor := NewAdvisor(nil)
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.StringMatching(`(MX|MS|MR|MV|MG|MT|Z|CW|C)[0-9]{1,4}[A-Z]{0,2}(-[0-9]{1,2}[A-Z]{0,2})?`).Draw(t, "model")
		var d *int
		if rapid.Bool().Draw(t, "has_days") {
			v := rapid.IntRange(-1000, 3000).Draw(t, "days")
			d = &v
		}
		usage := &model.Usage{
			ThroughputMbps:  rapid.IntRange(0, 2000).Draw(t, "throughput"),
			ClientCount:     rapid.IntRange(0, 500).Draw(t, "clients"),
			WirelessClients: rapid.IntRange(0, 100).Draw(t, "wireless"),
		}
		got := advisor.Recommend(Input{Model: raw, DaysToEOL: d, Usage: usage})
		if got.Model == eol.Normalize(raw) {
			t.Fatalf("Recommend(%q) returned itself", raw)
		}
	})
}
