package core

import (
	"fmt"
	"time"
)

// dayLayout is the calendar-day wire format used everywhere a date crosses
// the repository boundary.
const dayLayout = "2006-01-02"

// ParseDay interprets a YYYY-MM-DD string as local midnight. Calendar-day
// strings must never be parsed as UTC: a date keyed to the wrong zone shifts
// the transaction into the neighbouring day and corrupts every time bucket
// built from it.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDay renders a timestamp as its local calendar day.
func FormatDay(t time.Time) string {
	return t.In(time.Local).Format(dayLayout)
}

// Day truncates a timestamp to local midnight so that range comparisons work
// on whole calendar days.
func Day(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
