// Package timeline contains the canonical weekly timeline model: the
// WeekRecord built from raw remote payloads, and the calendar events
// derived from it. Everything in this package is pure data and pure
// functions - no network or storage I/O.
package timeline

import (
	"time"

	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// MealType identifies one of the three tracked meals.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealSnack     MealType = "snack"
)

// MealOrder is the fixed order in which meals appear in descriptions.
var MealOrder = []MealType{MealBreakfast, MealLunch, MealSnack}

// Meal holds what was served and how much of it was eaten.
// Percent is nil for meals without consumption-percentage semantics (snack).
type Meal struct {
	Items       []string `json:"items,omitempty"`
	Percent     *int     `json:"percent,omitempty"`
	Kcal        int      `json:"kcal,omitempty"`
	WeightGrams int      `json:"weight_grams,omitempty"`
}

// Absence marks a day the child did not attend.
type Absence string

const (
	AbsenceNone        Absence = ""
	AbsenceMotivated   Absence = "motivated"
	AbsenceUnmotivated Absence = "unmotivated"
)

// NapSpan is a nap with both start and end reported. Days where only one
// of the two is known carry no NapSpan at all.
type NapSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Minutes returns the nap length in whole minutes.
func (n NapSpan) Minutes() int {
	return int(n.End.Sub(n.Start).Minutes())
}

// Day is one normalized weekday entry of a WeekRecord.
type Day struct {
	Date       time.Time         `json:"date"`                  // local midnight
	CheckIn    string            `json:"check_in,omitempty"`    // "HH:MM", empty when unknown
	Nap        *NapSpan          `json:"nap,omitempty"`
	NapMinutes int               `json:"nap_minutes,omitempty"`
	Absence    Absence           `json:"absence,omitempty"`
	Meals      map[MealType]Meal `json:"meals,omitempty"`
}

// Weekday returns the lowercase weekday name of the day.
func (d Day) Weekday() string {
	return map[time.Weekday]string{
		time.Monday: "monday", time.Tuesday: "tuesday", time.Wednesday: "wednesday",
		time.Thursday: "thursday", time.Friday: "friday",
		time.Saturday: "saturday", time.Sunday: "sunday",
	}[d.Date.Weekday()]
}

// Absent reports whether the day carries any absence flag.
func (d Day) Absent() bool {
	return d.Absence != AbsenceNone
}

// HasRealData reports whether the day contains meaningful information:
// a check-in, an absence flag, a nap, or at least one meal with items.
func (d Day) HasRealData() bool {
	if d.CheckIn != "" || d.Absent() || d.Nap != nil {
		return true
	}
	for _, meal := range d.Meals {
		if len(meal.Items) > 0 {
			return true
		}
	}
	return false
}

// WeekRecord is the canonical record of one child-week, keyed by the
// Monday date of the week. Records for weeks strictly before the current
// week are immutable once archived.
type WeekRecord struct {
	ChildKey  string    `json:"child_key"`
	Monday    time.Time `json:"monday"`
	Days      []Day     `json:"days"` // sorted by date ascending
	FetchedAt time.Time `json:"fetched_at"`
}

// Key returns the archive week key (Monday ISO date).
func (r *WeekRecord) Key() string {
	return timeutil.WeekKey(r.Monday)
}

// HasRealData reports whether any day of the week carries real data.
// A week without any is the enrollment-boundary signal.
func (r *WeekRecord) HasRealData() bool {
	for _, d := range r.Days {
		if d.HasRealData() {
			return true
		}
	}
	return false
}

// Day returns the day entry for the given date, or nil.
func (r *WeekRecord) Day(date time.Time) *Day {
	for i := range r.Days {
		if timeutil.SameDay(r.Days[i].Date, date) {
			return &r.Days[i]
		}
	}
	return nil
}
