package eol

import (
	"strings"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/model"
)

// DateLayout is the canonical layout vendor EOL dates are published in
const DateLayout = "Jan 2, 2006"

var dateLayouts = []string{
	DateLayout,
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2006-01-02",
}

// ParseDate parses a vendor date string. Malformed or empty input reports
// false; it never returns an error.
func ParseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// "Sept 4, 2024" and other long abbreviations: keep the first three letters
	if fields := strings.Fields(s); len(fields) == 3 && len(fields[0]) > 3 {
		short := fields[0][:3] + " " + fields[1] + " " + fields[2]
		for _, layout := range []string{DateLayout, "Jan 2 2006"} {
			if t, err := time.Parse(layout, short); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date in the canonical layout
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// EndOfSupport returns the parsed end-of-support date of a record, or nil
func EndOfSupport(r *model.EOLRecord) *time.Time {
	if r == nil {
		return nil
	}
	return datePtr(r.EndOfSupport)
}

// EndOfSale returns the parsed end-of-sale date of a record, or nil
func EndOfSale(r *model.EOLRecord) *time.Time {
	if r == nil {
		return nil
	}
	return datePtr(r.EndOfSale)
}

func datePtr(s string) *time.Time {
	t, ok := ParseDate(s)
	if !ok {
		return nil
	}
	return &t
}
