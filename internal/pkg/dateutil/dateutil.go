// Package dateutil normalizes timestamps to UTC calendar days. Snapshot rows
// are keyed by day, so every engine must collapse times the same way.
package dateutil

import "time"

const DayLayout = "2006-01-02"

// DayOf truncates t to midnight UTC.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// ParseDay parses a YYYY-MM-DD string as a UTC day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}

func FormatDay(t time.Time) string {
	return DayOf(t).Format(DayLayout)
}

// MinDay returns the earlier of two days.
func MinDay(a, b time.Time) time.Time {
	if DayOf(a).Before(DayOf(b)) {
		return DayOf(a)
	}
	return DayOf(b)
}
