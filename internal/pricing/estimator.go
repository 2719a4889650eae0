package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/eol"
)

//go:embed prices.json
var defaultPricesJSON []byte

// DefaultLicenseType is the license tier used when none is requested
const DefaultLicenseType = "ENT"

// LicensePrice is the one-year price of a license tier for a hardware model
type LicensePrice struct {
	Model string  `json:"model"`
	Type  string  `json:"type"`
	Price float64 `json:"price"`
}

// LicenseTier is one step of a tiered family license default. A zero Max is
// open ended.
type LicenseTier struct {
	Max   int     `json:"max,omitempty"`
	Price float64 `json:"price"`
}

// LicenseRule estimates a family license cost from the replacement model,
// either flat or tiered by model number or port count.
type LicenseRule struct {
	Flat    float64       `json:"flat,omitempty"`
	By      string        `json:"by,omitempty"` // "number" or "ports"
	Default float64       `json:"default,omitempty"`
	Tiers   []LicenseTier `json:"tiers,omitempty"`
}

// Defaults is the built-in price data shipped with the binary
type Defaults struct {
	Hardware              Catalog                `json:"hardware"`
	BaseCosts             Catalog                `json:"base_costs"`
	DefaultCost           float64                `json:"default_cost"`
	Licenses              []LicensePrice         `json:"licenses"`
	LicenseTiers          map[string]LicenseRule `json:"license_tiers"`
	LicenseFamilyDefaults map[string]float64     `json:"license_family_defaults"`
	LicenseDefault        float64                `json:"license_default"`
}

// LoadDefaults decodes the embedded price data
func LoadDefaults() (*Defaults, error) {
	var d Defaults
	if err := json.Unmarshal(defaultPricesJSON, &d); err != nil {
		return nil, fmt.Errorf("failed to decode built-in prices: %w", err)
	}
	d.Hardware = d.Hardware.Normalized()
	d.BaseCosts = d.BaseCosts.Normalized()
	return &d, nil
}

// DefaultCatalog returns the built-in hardware catalog
func DefaultCatalog() Catalog {
	d, err := LoadDefaults()
	if err != nil {
		panic(err)
	}
	return d.Hardware
}

// Estimator prices replacement models. It is read-only after construction.
type Estimator struct {
	catalog  Catalog
	defaults *Defaults
	licenses map[licenseKey]float64
}

type licenseKey struct {
	model string
	kind  string
}

// NewEstimator builds an Estimator over a catalog. A nil catalog uses the
// built-in one. License prices come from the built-in list, overridden by
// any LIC-<MODEL>-<TYPE>-1YR SKUs present in the catalog.
func NewEstimator(catalog Catalog) *Estimator {
	d, err := LoadDefaults()
	if err != nil {
		panic(err)
	}
	if catalog == nil {
		catalog = d.Hardware
	}
	e := &Estimator{
		catalog:  catalog.Normalized(),
		defaults: d,
		licenses: make(map[licenseKey]float64),
	}
	for _, l := range d.Licenses {
		e.licenses[licenseKey{eol.Normalize(l.Model), strings.ToUpper(l.Type)}] = l.Price
	}
	for sku, price := range e.catalog[LicenseFamily] {
		if m, kind, ok := parseLicenseSKU(sku); ok {
			e.licenses[licenseKey{m, kind}] = price
		}
	}
	return e
}

// Catalog returns the normalized catalog in use
func (e *Estimator) Catalog() Catalog {
	return e.catalog
}

// Hardware prices a replacement model: catalog, built-in base costs, then a
// fixed default.
func (e *Estimator) Hardware(modelName string) Quote {
	if q, ok := e.catalog.Lookup(modelName); ok {
		return q
	}

	name := eol.Normalize(modelName)
	family := Family(name)
	q := Quote{Model: name, Family: family}
	if base := e.defaults.BaseCosts[family]; len(base) > 0 {
		keys := sortedKeys(base)
		sort.SliceStable(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
		for _, k := range keys {
			if strings.HasPrefix(name, k) {
				q.Key, q.Price, q.Source = k, base[k], SourceBuiltin
				return q
			}
		}
		q.Price, q.Source = average(base), SourceBuiltinAverage
		return q
	}

	q.Price, q.Source = e.defaults.DefaultCost, SourceDefault
	return q
}

// License estimates the one-year license cost for a replacement model
func (e *Estimator) License(modelName, licenseType string) float64 {
	name := eol.Normalize(modelName)
	kind := strings.ToUpper(licenseType)
	if kind == "" {
		kind = DefaultLicenseType
	}

	if p, ok := e.licenses[licenseKey{name, kind}]; ok {
		return p
	}

	parsed, parsedOK := eol.ParseModel(name)
	if parsedOK {
		series := parsed.Series()
		if p, ok := e.licenses[licenseKey{series, kind}]; ok {
			return p
		}
		var candidates []string
		for k := range e.licenses {
			if k.kind == kind && strings.HasPrefix(k.model, series) {
				candidates = append(candidates, k.model)
			}
		}
		if len(candidates) > 0 {
			sort.Strings(candidates)
			return e.licenses[licenseKey{candidates[0], kind}]
		}
	}

	family := string(eol.FamilyOf(name))
	if rule, ok := e.defaults.LicenseTiers[family]; ok && kind == DefaultLicenseType {
		if p, ok := rule.estimate(parsed, parsedOK); ok {
			return p
		}
	}
	if p, ok := e.defaults.LicenseFamilyDefaults[family]; ok {
		return p
	}
	return e.defaults.LicenseDefault
}

func (r LicenseRule) estimate(p eol.ParsedModel, ok bool) (float64, bool) {
	if r.Flat > 0 {
		return r.Flat, true
	}
	if !ok {
		return 0, false
	}

	var value string
	switch r.By {
	case "number":
		value = p.Number
	case "ports":
		value = p.Size
	default:
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		if r.Default > 0 {
			return r.Default, true
		}
		return 0, false
	}
	for _, t := range r.Tiers {
		if t.Max == 0 || n <= t.Max {
			return t.Price, true
		}
	}
	return 0, false
}

// parseLicenseSKU reads LIC-<MODEL>[-<TYPE>]-1YR. Only one-year SKUs count;
// a SKU without a type ("LIC-MS120-8-1YR") is an enterprise license.
func parseLicenseSKU(sku string) (string, string, bool) {
	s := eol.Normalize(sku)
	if !strings.HasPrefix(s, "LIC-") || !strings.HasSuffix(s, "-1YR") {
		return "", "", false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "LIC-"), "-1YR")
	m, kind := body, DefaultLicenseType
	if i := strings.LastIndex(body, "-"); i > 0 {
		if _, err := strconv.Atoi(body[i+1:]); err != nil {
			m, kind = body[:i], body[i+1:]
		}
	}
	if _, ok := eol.ParseModel(m); !ok {
		return "", "", false
	}
	return m, kind, true
}
