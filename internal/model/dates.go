package model

import (
	"regexp"
	"strings"
	"time"
)

// PresentDate is the canonical end date of an ongoing engagement.
const PresentDate = "present"

var (
	bareYearPattern = regexp.MustCompile(`^\d{4}$`)

	dateLayouts = []string{
		"2006-01-02",
		"2006-01",
		"2006-1",
		"2006/01",
		"01/2006",
		"1/2006",
		"01.2006",
		"January 2006",
		"Jan 2006",
		"01/02/2006",
	}
)

// CanonicalDate converts free-form date text to the canonical YYYY-MM form
// ("present" for ongoing, bare YYYY when the month is unknown). Text that
// cannot be parsed is returned trimmed rather than discarded.
func CanonicalDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	switch strings.ToLower(s) {
	case PresentDate, "current", "now", "ongoing":
		return PresentDate
	}

	if bareYearPattern.MatchString(s) {
		return s
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01")
		}
	}

	return s
}

// ParseDate resolves a canonical date to a point in time. Bare years
// resolve to January; "present" and empty resolve to now.
func ParseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ToLower(s) == PresentDate {
		return now, true
	}

	if bareYearPattern.MatchString(s) {
		if t, err := time.Parse("2006", s); err == nil {
			return t, true
		}
	}

	if t, err := time.Parse("2006-01", s); err == nil {
		return t, true
	}

	// Tolerate non-canonical input so scoring does not silently drop
	// ranges from records produced before normalization tightened.
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
