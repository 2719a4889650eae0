package pricing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestCatalog_Lookup(t *testing.T) {
	catalog := Catalog{
		"MX": {"MX67": 1000, "MX68": 2000, "MX68W": 2200},
		"MS": {"MS120-8": 800, "MS120-24P": 2500, "C9300-24P": 13000},
		"MR": {"CW9166I": 1600},
		"License": {"LIC-MX68-ENT-1YR": 300},
	}.Normalized()

	tests := []struct {
		model  string
		ok     bool
		key    string
		price  float64
		source Source
	}{
		{"MX67", true, "MX67", 1000, SourceCatalog},
		{"mx68w", true, "MX68W", 2200, SourceCatalog},
		{"MX68CW", true, "MX68", 2000, SourceCatalogPrefix},
		{"MX6", true, "MX68W", 2200, SourceCatalogPrefix},
		{"MS120-8LP", true, "MS120-8", 800, SourceCatalogPrefix},
		{"MS120-48FP", true, "MS120-24P", 2500, SourceCatalogPrefix},
		{"CW9166I-MR", true, "CW9166I", 1600, SourceCatalogPrefix},
		{"C9300-24P", true, "C9300-24P", 13000, SourceCatalog},
		{"MX105", true, "", 5200.0 / 3, SourceCatalogAverage},
		{"LIC-MX68-ENT-1YR", true, "LIC-MX68-ENT-1YR", 300, SourceCatalog},
		{"MV2", false, "", 0, ""},
		{"GS110-8", false, "", 0, ""},
		{"", false, "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			q, ok := catalog.Lookup(tt.model)
			if ok != tt.ok {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.model, ok, tt.ok)
			}
			if !ok {
				return
			}
			if q.Key != tt.key || math.Abs(q.Price-tt.price) > 0.001 || q.Source != tt.source {
				t.Errorf("Lookup(%q) = %+v, want key %q price %.2f source %s", tt.model, q, tt.key, tt.price, tt.source)
			}
		})
	}
}

func TestSource_Miss(t *testing.T) {
	for _, s := range []Source{SourceCatalog, SourceCatalogPrefix} {
		if s.Miss() {
			t.Errorf("%s should not be a miss", s)
		}
	}
	for _, s := range []Source{SourceCatalogAverage, SourceBuiltin, SourceBuiltinAverage, SourceDefault} {
		if !s.Miss() {
			t.Errorf("%s should be a miss", s)
		}
	}
}

func TestEstimator_Hardware(t *testing.T) {
	e := NewEstimator(Catalog{"MX": {"MX75": 2000}})

	tests := []struct {
		model  string
		price  float64
		source Source
	}{
		{"MX75", 2000, SourceCatalog},
		{"MX85", 2000, SourceCatalogAverage},
		{"MS125-24P", 3500, SourceBuiltin},
		{"C9300-24", 0, SourceBuiltinAverage},
		{"MR57", 2095, SourceBuiltin},
		{"Z4C", 695, SourceBuiltin},
		{"GS110-8", 1000, SourceDefault},
	}
	for _, tt := range tests {
		q := e.Hardware(tt.model)
		if q.Source != tt.source {
			t.Errorf("Hardware(%q) source = %s, want %s", tt.model, q.Source, tt.source)
		}
		if tt.price > 0 && q.Price != tt.price {
			t.Errorf("Hardware(%q) price = %.2f, want %.2f", tt.model, q.Price, tt.price)
		}
	}

	// MS built-in average: (2500+3500+3500+5500+7500+12000+18000) / 7
	if q := e.Hardware("C9300-24"); math.Abs(q.Price-52500.0/7) > 0.001 {
		t.Errorf("Hardware(C9300-24) = %.2f, want the MS built-in average", q.Price)
	}
}

func TestEstimator_DefaultCatalog(t *testing.T) {
	e := NewEstimator(nil)
	if e.Catalog().Len() < 100 {
		t.Fatalf("default catalog has %d models", e.Catalog().Len())
	}
	if q := e.Hardware("C9300-48P"); q.Price != 19995 || q.Source != SourceCatalog {
		t.Errorf("Hardware(C9300-48P) = %+v", q)
	}
	if q := e.Hardware("CW9166I-MR"); q.Price != 1595 {
		t.Errorf("Hardware(CW9166I-MR) = %+v, want 1595", q)
	}
}

func TestEstimator_License(t *testing.T) {
	e := NewEstimator(Catalog{
		"License": {
			"LIC-MX85-ENT-1YR": 900,
			"LIC-MX85-ENT-3YR": 2250,
			"LIC-MS120-24-1YR": 60,
			"LIC-MX64-SEC-1YR": 400,
			"LIC-ENT-1YR":      150,
		},
	})

	tests := []struct {
		name  string
		model string
		kind  string
		want  float64
	}{
		{"catalog sku", "MX85", "ENT", 900},
		{"default type", "MX85", "", 900},
		{"untyped sku", "MS120-24", "ENT", 60},
		{"typed sku", "MX64", "sec", 400},
		{"built-in list", "MX95", "ENT", 750},
		{"series", "MR46E", "ENT", 195},
		{"series prefix", "MS120-16", "ENT", 60},
		{"mx tier small", "MX66", "ENT", 200},
		{"mx tier xlarge", "MX650", "ENT", 3000},
		{"ms tier 8 port", "C9300-8", "ENT", 50},
		{"ms tier 24 port", "C9300-24P", "ENT", 150},
		{"ms tier 48 port", "C9300X-48Y", "ENT", 250},
		{"ms tier no ports", "C9500", "ENT", 150},
		{"flat wireless", "CW9166I-MR", "ENT", 150},
		{"flat camera", "MV93", "ENT", 200},
		{"family default", "MG41", "ENT", 100},
		{"family default other type", "MX66", "ADV", 300},
		{"unknown", "GS110-8", "ENT", 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.License(tt.model, tt.kind); got != tt.want {
				t.Errorf("License(%q, %q) = %.2f, want %.2f", tt.model, tt.kind, got, tt.want)
			}
		})
	}
}

type memCache struct {
	catalog   Catalog
	fetchedAt time.Time
	err       error
}

func (m *memCache) LoadCatalog(ctx context.Context) (Catalog, time.Time, error) {
	if m.err != nil {
		return nil, time.Time{}, m.err
	}
	if m.catalog == nil {
		return nil, time.Time{}, ErrCacheMiss
	}
	return m.catalog, m.fetchedAt, nil
}

func (m *memCache) StoreCatalog(ctx context.Context, c Catalog, fetchedAt time.Time) error {
	m.catalog, m.fetchedAt = c, fetchedAt
	return nil
}

func TestFresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		fetchedAt time.Time
		ttl       time.Duration
		want      bool
	}{
		{"never fetched", time.Time{}, time.Hour, false},
		{"within ttl", now.Add(-time.Hour), 24 * time.Hour, true},
		{"expired", now.Add(-25 * time.Hour), 24 * time.Hour, false},
		{"no expiry", now.AddDate(-1, 0, 0), 0, true},
	}
	for _, tt := range tests {
		if got := Fresh(tt.fetchedAt, now, tt.ttl); got != tt.want {
			t.Errorf("%s: Fresh() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoadCatalog(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c, state, err := LoadCatalog(ctx, &memCache{}, now, time.Hour)
	if err != nil || !state.Fallback || c.Len() == 0 {
		t.Errorf("empty cache: catalog %d, state %+v, err %v", c.Len(), state, err)
	}

	cache := &memCache{}
	if err := cache.StoreCatalog(ctx, Catalog{"MX": {"MX75": 1}}, now.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	c, state, err = LoadCatalog(ctx, cache, now, time.Hour)
	if err != nil || state.Fallback || !state.Stale || c.Len() != 1 {
		t.Errorf("stale cache: catalog %d, state %+v, err %v", c.Len(), state, err)
	}

	boom := errors.New("boom")
	if _, _, err := LoadCatalog(ctx, &memCache{err: boom}, now, time.Hour); !errors.Is(err, boom) {
		t.Errorf("LoadCatalog() error = %v, want %v", err, boom)
	}

	if _, state, _ := LoadCatalog(ctx, nil, now, time.Hour); !state.Fallback {
		t.Error("nil cache should fall back")
	}
}
