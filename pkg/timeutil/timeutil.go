// Package timeutil provides ISO-week arithmetic for the Kinderpedia sync
// service. The remote API addresses timelines by signed week offsets
// (0 = current week, -1 = previous week), while the archive keys weeks by
// the Monday date of the week. This package converts between the two.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// WeekKeyLayout is the layout used for archive week keys (Monday ISO date).
const WeekKeyLayout = "2006-01-02"

// MondayOf returns the Monday 00:00:00 of the ISO week containing t,
// in t's location.
func MondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday of the week at the given signed offset
// relative to the week containing now.
func WeekStart(now time.Time, offset int) time.Time {
	return MondayOf(now).AddDate(0, 0, offset*7)
}

// OffsetOf returns the signed week offset of the week containing t,
// relative to the week containing now. Weeks in the past yield negative
// offsets. The difference is taken between calendar dates, so a DST
// transition between the two Mondays cannot shift the result.
func OffsetOf(now, t time.Time) int {
	base := MondayOf(now)
	target := MondayOf(t.In(now.Location()))
	days := int(utcMidnight(target).Sub(utcMidnight(base)).Hours() / 24)
	return days / 7
}

func utcMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekKey formats the Monday of the week containing t as an archive key.
func WeekKey(t time.Time) string {
	return MondayOf(t).Format(WeekKeyLayout)
}

// ParseWeekKey parses an archive week key back into a Monday date in the
// given location.
func ParseWeekKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(WeekKeyLayout, key, loc)
}

// StartOfDay returns 00:00:00 of the day containing t, in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// AtClock returns the time on day d at the given "HH:MM" clock string.
// The boolean result is false when the clock string does not parse.
func AtClock(d time.Time, clock string) (time.Time, bool) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), parsed.Hour(), parsed.Minute(), 0, 0, d.Location()), true
}
