package eol

import (
	"sort"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/model"
)

// familySuffix marks an aggregate key covering a whole product series
const familySuffix = " FAMILY"

// Rule identifies which matching step produced a Match
type Rule string

const (
	RuleFamily   Rule = "family"
	RuleExact    Rule = "exact"
	RuleStripped Rule = "variant-stripped"
	RuleSeries   Rule = "series"
	RuleFuzzy    Rule = "fuzzy"
)

// Match is a successful table lookup
type Match struct {
	Key    string          `json:"key"`
	Rule   Rule            `json:"rule"`
	Record model.EOLRecord `json:"record"`
}

// Table is an EOL lookup table keyed by canonical (upper-cased,
// whitespace-collapsed) model or "<SERIES> FAMILY" tokens.
// A Table is immutable once built and safe for concurrent use.
type Table struct {
	records map[string]model.EOLRecord
	keys    []string // sorted canonical keys
}

// NewTable canonicalizes the keys of records. When two raw keys collapse to
// the same canonical key, the lexicographically last raw key wins.
func NewTable(records map[string]model.EOLRecord) *Table {
	raw := make([]string, 0, len(records))
	for k := range records {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	t := &Table{records: make(map[string]model.EOLRecord, len(records))}
	for _, k := range raw {
		key := Normalize(k)
		if key == "" {
			continue
		}
		t.records[key] = records[k]
	}
	t.keys = make([]string, 0, len(t.records))
	for k := range t.records {
		t.keys = append(t.keys, k)
	}
	sort.Strings(t.keys)
	return t
}

// Len returns the number of canonical keys
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the canonical keys in sorted order
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Records returns a copy of the table contents keyed canonically
func (t *Table) Records() map[string]model.EOLRecord {
	out := make(map[string]model.EOLRecord, t.Len())
	if t == nil {
		return out
	}
	for k, v := range t.records {
		out[k] = v
	}
	return out
}

// Get returns the record stored under a key, canonicalizing the key first
func (t *Table) Get(key string) (model.EOLRecord, bool) {
	if t == nil {
		return model.EOLRecord{}, false
	}
	r, ok := t.records[Normalize(key)]
	return r, ok
}

// Lookup resolves a model and returns only the record
func (t *Table) Lookup(raw string) (*model.EOLRecord, bool) {
	m, ok := t.Resolve(raw)
	if !ok {
		return nil, false
	}
	rec := m.Record
	return &rec, true
}

// Resolve maps a raw model string to an EOL record. The first rule that hits
// wins:
//
//  1. "<SERIES>-<SIZE> FAMILY", then "<SERIES> FAMILY"
//  2. exact model
//  3. model with its trailing variant letters removed (MS220-8P -> MS220-8)
//  4. series (MS220-8P -> MS220)
//  5. prefix candidates, FAMILY keys first, then sized keys, then longest
//
// A model that does not tokenize resolves to nothing.
func (t *Table) Resolve(raw string) (Match, bool) {
	if t.Len() == 0 {
		return Match{}, false
	}
	p, ok := ParseModel(raw)
	if !ok {
		return Match{}, false
	}
	series := p.Series()

	if p.HasSize() {
		if m, ok := t.hit(series+"-"+p.Size+familySuffix, RuleFamily); ok {
			return m, true
		}
	}
	if m, ok := t.hit(series+familySuffix, RuleFamily); ok {
		return m, true
	}
	if m, ok := t.hit(p.Raw, RuleExact); ok {
		return m, true
	}

	stripped := p.Raw
	if p.HasSize() && p.Variant != "" && p.Tail == "" {
		stripped = p.WithoutVariant()
		if m, ok := t.hit(stripped, RuleStripped); ok {
			return m, true
		}
	}

	if m, ok := t.hit(series, RuleSeries); ok {
		return m, true
	}

	if key, ok := t.fuzzy(p.Raw, stripped, series); ok {
		return Match{Key: key, Rule: RuleFuzzy, Record: t.records[key]}, true
	}
	return Match{}, false
}

func (t *Table) hit(key string, rule Rule) (Match, bool) {
	r, ok := t.records[key]
	if !ok {
		return Match{}, false
	}
	return Match{Key: key, Rule: rule, Record: r}, true
}

// fuzzy collects keys that are a prefix of the model, stripped model or series,
// plus keys that extend the model, and picks the most specific one.
func (t *Table) fuzzy(modelKey, stripped, series string) (string, bool) {
	var family, sized, rest []string
	for _, key := range t.keys {
		base := strings.TrimSuffix(key, familySuffix)
		if !related(key, base, modelKey, stripped, series) {
			continue
		}
		switch {
		case strings.HasSuffix(key, familySuffix):
			family = append(family, key)
		case hasSizeSegment(key):
			sized = append(sized, key)
		default:
			rest = append(rest, key)
		}
	}

	if len(family) > 0 {
		sort.SliceStable(family, func(i, j int) bool { return len(family[i]) < len(family[j]) })
		return family[0], true
	}
	if len(sized) > 0 {
		sortLongestFirst(sized)
		return sized[0], true
	}
	if len(rest) > 0 {
		sortLongestFirst(rest)
		return rest[0], true
	}
	return "", false
}

// related reports whether key is a fuzzy candidate for the model. A FAMILY
// key only counts when its base is itself a series, so "MS FAMILY" never
// catches every MS model.
func related(key, base, modelKey, stripped, series string) bool {
	if strings.HasSuffix(key, familySuffix) {
		if _, ok := ParseModel(base); !ok {
			return false
		}
		return hasPrefixAtBoundary(modelKey, base)
	}
	return hasPrefixAtBoundary(modelKey, key) ||
		hasPrefixAtBoundary(stripped, key) ||
		hasPrefixAtBoundary(series, key) ||
		hasPrefixAtBoundary(key, modelKey)
}

// hasPrefixAtBoundary is strings.HasPrefix that refuses to split a number,
// so "MS22" is not a prefix of "MS220-8" and "MX6" is not a prefix of "MX60".
func hasPrefixAtBoundary(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	if len(s) == len(prefix) || len(prefix) == 0 {
		return true
	}
	return !(isDigit(s[len(prefix)]) && isDigit(prefix[len(prefix)-1]))
}

// sortLongestFirst orders keys by length descending; keys arrive sorted so
// equal lengths stay in lexicographic order.
func sortLongestFirst(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
}

func hasSizeSegment(key string) bool {
	p, ok := ParseModel(key)
	return ok && p.HasSize()
}
