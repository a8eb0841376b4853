package core

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DayLayout is the wire and storage format of calendar days.
const DayLayout = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a Day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, CleanString(s))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing day %q", s)
	}
	return t, nil
}

// FormatDay is the inverse of ParseDay.
func FormatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DayLayout)
}

// Now returns the current UTC time truncated to microseconds (the finest precision every backend keeps).
var Now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
