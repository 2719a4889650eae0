// Package pricing estimates hardware and license costs for replacement models.
package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
)

// LicenseFamily is the catalog section holding license SKUs
const LicenseFamily = "License"

// Source says where a price came from
type Source string

const (
	SourceCatalog        Source = "catalog"
	SourceCatalogPrefix  Source = "catalog-prefix"
	SourceCatalogAverage Source = "catalog-average"
	SourceBuiltin        Source = "builtin"
	SourceBuiltinAverage Source = "builtin-average"
	SourceDefault        Source = "default"
)

// Miss reports whether the price is an estimate rather than a catalog entry
// for the model or a close relative.
func (s Source) Miss() bool {
	return s != SourceCatalog && s != SourceCatalogPrefix
}

// Quote is a priced model
type Quote struct {
	Model  string  `json:"model"`
	Family string  `json:"family"`
	Key    string  `json:"key,omitempty"`
	Price  float64 `json:"price"`
	Source Source  `json:"source"`
}

// Catalog maps family -> model -> unit price. It may be incomplete.
type Catalog map[string]map[string]float64

// ErrInvalidCatalog is returned for price documents that cannot be used
var ErrInvalidCatalog = errors.New("invalid price catalog")

// ReadCatalog decodes a family -> model -> price document. Model keys are
// canonicalized and negative prices rejected.
func ReadCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	c = c.Normalized()
	for family, models := range c {
		for m, price := range models {
			if price < 0 {
				return nil, fmt.Errorf("%w: negative price for %s %s", ErrInvalidCatalog, family, m)
			}
		}
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: no prices", ErrInvalidCatalog)
	}
	return c, nil
}

// Family returns the catalog section a model or SKU is filed under
func Family(token string) string {
	if eol.IsLicense(token) {
		return LicenseFamily
	}
	f := eol.FamilyOf(token)
	if f == model.FamilyOther {
		return ""
	}
	return string(f)
}

// Normalized returns a copy with every model key canonicalized
func (c Catalog) Normalized() Catalog {
	out := make(Catalog, len(c))
	for family, models := range c {
		m := make(map[string]float64, len(models))
		for k, v := range models {
			m[eol.Normalize(k)] = v
		}
		out[family] = m
	}
	return out
}

// Len returns the number of priced models across all families
func (c Catalog) Len() int {
	n := 0
	for _, models := range c {
		n += len(models)
	}
	return n
}

// Set records a price, creating the family section when needed
func (c Catalog) Set(family, modelName string, price float64) {
	if c[family] == nil {
		c[family] = make(map[string]float64)
	}
	c[family][eol.Normalize(modelName)] = price
}

// Lookup prices a model: exact key, then the longest key the model extends
// or that extends the model, then any key of the same series, then the
// family average.
func (c Catalog) Lookup(raw string) (Quote, bool) {
	name := eol.Normalize(raw)
	if name == "" {
		return Quote{}, false
	}
	family := Family(name)
	prices := c[family]
	if family == "" || len(prices) == 0 {
		return Quote{}, false
	}
	q := Quote{Model: name, Family: family}

	if p, ok := prices[name]; ok {
		q.Key, q.Price, q.Source = name, p, SourceCatalog
		return q, true
	}

	keys := sortedKeys(prices)

	var prefix []string
	for _, k := range keys {
		if strings.HasPrefix(name, k) || strings.HasPrefix(k, name) {
			prefix = append(prefix, k)
		}
	}
	if len(prefix) > 0 {
		sort.SliceStable(prefix, func(i, j int) bool { return len(prefix[i]) > len(prefix[j]) })
		q.Key, q.Price, q.Source = prefix[0], prices[prefix[0]], SourceCatalogPrefix
		return q, true
	}

	if p, ok := eol.ParseModel(name); ok {
		series := p.Series()
		for _, k := range keys {
			if kp, ok := eol.ParseModel(k); ok && kp.Series() == series {
				q.Key, q.Price, q.Source = k, prices[k], SourceCatalogPrefix
				return q, true
			}
		}
	}

	q.Price, q.Source = average(prices), SourceCatalogAverage
	return q, true
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func average(m map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, k := range sortedKeys(m) {
		sum += m[k]
	}
	return sum / float64(len(m))
}
