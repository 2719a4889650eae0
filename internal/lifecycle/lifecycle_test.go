package lifecycle

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func days(n int) *int { return &n }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		days *int
		want Status
	}{
		{"no date", nil, StatusCurrent},
		{"far out", days(731), StatusCurrent},
		{"planning upper", days(730), StatusPlanning},
		{"planning lower", days(366), StatusPlanning},
		{"warning upper", days(365), StatusWarning},
		{"warning lower", days(181), StatusWarning},
		{"critical upper", days(180), StatusCritical},
		{"critical 90", days(90), StatusCritical},
		{"critical lower", days(1), StatusCritical},
		{"today", days(0), StatusEndOfSupport},
		{"past", days(-400), StatusEndOfSupport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.days); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		days *int
		want Health
	}{
		{nil, HealthGood},
		{days(731), HealthGood},
		{days(730), HealthWarning},
		{days(366), HealthWarning},
		{days(365), HealthCritical},
		{days(-10), HealthCritical},
	}
	for _, tt := range tests {
		if got := Categorize(tt.days); got != tt.want {
			t.Errorf("Categorize(%v) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name     string
		support  *int
		sale     *int
		want     int
		category RiskCategory
	}{
		{"unknown", nil, nil, 0, RiskLow},
		{"critical support only", days(90), nil, 60, RiskMedium},
		{"planning with past end of sale", days(500), days(-30), 45, RiskMedium},
		{"end of support with past end of sale", days(-1), days(-400), 95, RiskHigh},
		{"sale within 180", days(1000), days(100), 20, RiskLow},
		{"sale within year", days(600), days(300), 35, RiskLow},
		{"warning and sale today", days(200), days(0), 65, RiskMedium},
		{"critical and sale past", days(10), days(-1), 85, RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RiskScore(tt.support, tt.sale)
			if got != tt.want {
				t.Errorf("RiskScore() = %d, want %d", got, tt.want)
			}
			if c := CategoryFor(got); c != tt.category {
				t.Errorf("CategoryFor(%d) = %q, want %q", got, c, tt.category)
			}
		})
	}
}

func TestComputeRisk(t *testing.T) {
	today := time.Date(2025, time.June, 1, 15, 30, 0, 0, time.UTC)
	sale := today.AddDate(0, -2, 0)
	if got := ComputeRisk(days(500), &sale, today); got != 45 {
		t.Errorf("ComputeRisk() = %d, want 45", got)
	}
	if got := ComputeRisk(nil, nil, today); got != 0 {
		t.Errorf("ComputeRisk() with no data = %d, want 0", got)
	}
}

func TestDaysUntil(t *testing.T) {
	today := time.Date(2025, time.January, 1, 23, 59, 0, 0, time.UTC)
	tests := []struct {
		date time.Time
		want int
	}{
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), 90},
		{time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), -1},
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 365},
	}
	for _, tt := range tests {
		if got := DaysUntil(tt.date, today); got != tt.want {
			t.Errorf("DaysUntil(%s) = %d, want %d", tt.date.Format("2006-01-02"), got, tt.want)
		}
	}
	if DaysPtr(nil, today) != nil {
		t.Error("DaysPtr(nil) should be nil")
	}
}

func TestRiskCategoryRank(t *testing.T) {
	if !(RiskHigh.Rank() > RiskMedium.Rank() && RiskMedium.Rank() > RiskLow.Rank() && RiskLow.Rank() > RiskCategory("").Rank()) {
		t.Error("risk categories are not ordered High > Medium > Low > unknown")
	}
}

func TestEndOfSupportProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := rapid.IntRange(-5000, 0).Draw(t, "days")
		if got := Classify(&d); got != StatusEndOfSupport {
			t.Fatalf("Classify(%d) = %q, want End of Support", d, got)
		}
		if got := SupportContribution(&d); got != 70 {
			t.Fatalf("SupportContribution(%d) = %d, want 70", d, got)
		}
	})
}

func TestRiskMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(-2000, 4000).Draw(t, "a")
		b := rapid.IntRange(a, 4000).Draw(t, "b")
		var sale *int
		if rapid.Bool().Draw(t, "has_sale") {
			s := rapid.IntRange(-2000, 4000).Draw(t, "sale")
			sale = &s
		}
		ra, rb := RiskScore(&a, sale), RiskScore(&b, sale)
		if rb > ra {
			t.Fatalf("RiskScore(%d) = %d < RiskScore(%d) = %d", a, ra, b, rb)
		}
		if ra < 0 || ra > 100 {
			t.Fatalf("RiskScore(%d) = %d out of range", a, ra)
		}
	})
}
