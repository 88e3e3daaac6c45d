// Package timeutil holds the wall-clock arithmetic shared by the timer store
// and the dashboard: entry durations and the start of reporting ranges.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Range names a reporting window that always ends "now".
type Range string

const (
	Today Range = "today"
	Week  Range = "week"
	Month Range = "month"
)

// Ranges lists the accepted ranges in display order.
var Ranges = []Range{Today, Week, Month}

// ParseRange validates s. An empty string yields def.
func ParseRange(s string, def Range) (Range, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, nil
	}
	for _, r := range Ranges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid range %q: want today, week or month", s)
}

// Duration returns the whole seconds between startAt and endAt, never negative.
func Duration(startAt, endAt time.Time) int64 {
	secs := int64(endAt.Sub(startAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// RangeStart returns the local midnight that opens r, evaluated at now in
// now's location. Weeks start on Monday, so a Sunday belongs to the week that
// began six days earlier.
func RangeStart(r Range, now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	switch r {
	case Week:
		weekday := int(midnight.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return midnight.AddDate(0, 0, -(weekday - 1))
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	default:
		return midnight
	}
}
