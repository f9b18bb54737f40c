package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// SchoolDayEnd is the fixed end-of-day clock used for School event spans.
// Kindergartens report check-in but not a reliable check-out, so the span
// always ends at closing time.
const SchoolDayEnd = "18:00"

var mealIcons = map[MealType]string{
	MealBreakfast: "🥣",
	MealLunch:     "🍲",
	MealSnack:     "🍎",
}

var mealLabels = map[MealType]string{
	MealBreakfast: "Breakfast",
	MealLunch:     "Lunch",
	MealSnack:     "Snack",
}

// CalendarEvent is a presentation-ready event derived from a WeekRecord.
type CalendarEvent struct {
	Summary     string    `json:"summary"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
}

// Events derives the calendar events for a whole week.
//
// Per day: an absent day (motivated or not) yields no events at all, even
// when the payload carried a planned menu. Otherwise a School event spans
// [check-in, SchoolDayEnd] with one description line per meal in fixed
// order, and a separate Nap event is emitted when both nap times are known.
func Events(record *WeekRecord) []CalendarEvent {
	if record == nil {
		return nil
	}

	var events []CalendarEvent
	for _, day := range record.Days {
		events = append(events, DayEvents(day)...)
	}
	return events
}

// DayEvents derives the calendar events for a single day.
func DayEvents(day Day) []CalendarEvent {
	if day.Absent() {
		return nil
	}

	var events []CalendarEvent

	if start, ok := timeutil.AtClock(day.Date, day.CheckIn); ok {
		end, _ := timeutil.AtClock(day.Date, SchoolDayEnd)
		events = append(events, CalendarEvent{
			Summary:     fmt.Sprintf("School %s", day.CheckIn),
			Start:       start,
			End:         end,
			Description: mealDescription(day),
		})
	}

	if day.Nap != nil {
		events = append(events, CalendarEvent{
			Summary: fmt.Sprintf("Nap (%d min)", day.NapMinutes),
			Start:   day.Nap.Start,
			End:     day.Nap.End,
		})
	}

	return events
}

// mealDescription builds one line per meal in fixed order
// breakfast -> lunch -> snack: icon, label, item list, then the consumption
// percentage where the meal has one.
func mealDescription(day Day) string {
	var lines []string
	for _, mealType := range MealOrder {
		meal, ok := day.Meals[mealType]
		if !ok || len(meal.Items) == 0 {
			continue
		}
		line := fmt.Sprintf("%s %s: %s", mealIcons[mealType], mealLabels[mealType], strings.Join(meal.Items, ", "))
		if meal.Percent != nil {
			line += fmt.Sprintf(" (%d%%)", *meal.Percent)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
