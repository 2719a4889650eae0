package eol

import "strings"

// familyPrefix is the set of product-line tokens a model may start with.
// Longer tokens come first so "CW9166" is not read as "C" + "W...".
var familyPrefixes = []string{"VMX", "CW", "MR", "MS", "MX", "MV", "MG", "MT", "Z", "C"}

// ParsedModel is the structured form of a raw model string.
//
// "MS120-48LP-HW" parses to Family "MS", Number "120", Size "48",
// Variant "LP", Tail "-HW". "C9300X-24Y" parses to Family "C",
// Number "9300", Revision "X", Size "24", Variant "Y".
type ParsedModel struct {
	Raw      string // normalized input
	Family   string // product-line token
	Number   string // numeric id following the family token
	Revision string // letters glued to the number (MX64W, MR30H, CW9166I)
	Size     string // digits after the first hyphen (port count or size)
	Variant  string // letters glued to the size (PoE or uplink variant)
	Tail     string // anything left over
}

// Series returns the family token plus numeric id, e.g. "MS220"
func (p ParsedModel) Series() string {
	return p.Family + p.Number
}

// HasSize reports whether the model carries a -<digits> segment
func (p ParsedModel) HasSize() bool {
	return p.Size != ""
}

// WithoutVariant returns the model up to and including the size digits
func (p ParsedModel) WithoutVariant() string {
	if p.Size == "" {
		return p.Raw
	}
	return p.Series() + p.Revision + "-" + p.Size
}

// WithVariant rebuilds the model with a different variant token
func (p ParsedModel) WithVariant(variant string) string {
	if p.Size == "" {
		return p.Raw
	}
	return p.Series() + p.Revision + "-" + p.Size + variant + p.Tail
}

// Suffix returns everything after the series token, e.g. "-24LP" for MS220-24LP
func (p ParsedModel) Suffix() string {
	return strings.TrimPrefix(p.Raw, p.Series())
}

// Normalize upper-cases a model or table key and collapses every whitespace
// run, including non-breaking spaces, into one regular space.
func Normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// ParseModel tokenizes a raw model string. It reports false when the string
// does not start with a known family token followed by digits.
func ParseModel(raw string) (ParsedModel, bool) {
	s := Normalize(raw)
	p := ParsedModel{Raw: s}

	for _, prefix := range familyPrefixes {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) && isDigit(s[len(prefix)]) {
			p.Family = prefix
			break
		}
	}
	if p.Family == "" {
		return ParsedModel{}, false
	}

	i := len(p.Family)
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	p.Number = s[start:i]

	start = i
	for i < len(s) && isUpper(s[i]) {
		i++
	}
	p.Revision = s[start:i]

	if i+1 < len(s) && s[i] == '-' && isDigit(s[i+1]) {
		i++
		start = i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		p.Size = s[start:i]

		start = i
		for i < len(s) && isUpper(s[i]) {
			i++
		}
		p.Variant = s[start:i]
	}

	p.Tail = s[i:]
	return p, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
