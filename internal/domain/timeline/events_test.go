package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayEvents_AbsentDayYieldsNothing(t *testing.T) {
	day := Day{
		Date:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CheckIn: "08:10",
		Absence: AbsenceMotivated,
		Meals: map[MealType]Meal{
			MealLunch: {Items: []string{"Soup"}},
		},
	}

	assert.Empty(t, DayEvents(day))
}

func TestDayEvents_SchoolEvent(t *testing.T) {
	percent := 85
	day := Day{
		Date:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CheckIn: "08:10",
		Meals: map[MealType]Meal{
			MealSnack:     {Items: []string{"Apple", "Yogurt"}},
			MealBreakfast: {Items: []string{"Porridge"}, Percent: &percent},
		},
	}

	events := DayEvents(day)
	require.Len(t, events, 1)

	school := events[0]
	assert.Equal(t, "School 08:10", school.Summary)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 10, 0, 0, time.UTC), school.Start)
	assert.Equal(t, time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), school.End)

	// fixed order breakfast -> snack, percent only where present
	assert.Equal(t, "🥣 Breakfast: Porridge (85%)\n🍎 Snack: Apple, Yogurt", school.Description)
}

func TestDayEvents_NoCheckInNoSchoolEvent(t *testing.T) {
	day := Day{
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Meals: map[MealType]Meal{
			MealLunch: {Items: []string{"Soup"}},
		},
	}

	assert.Empty(t, DayEvents(day))
}

func TestDayEvents_NapEvent(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	day := Day{
		Date:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CheckIn:    "08:10",
		Nap:        &NapSpan{Start: start, End: end},
		NapMinutes: 90,
	}

	events := DayEvents(day)
	require.Len(t, events, 2)

	nap := events[1]
	assert.Equal(t, "Nap (90 min)", nap.Summary)
	assert.Equal(t, start, nap.Start)
	assert.Equal(t, end, nap.End)
	assert.Empty(t, nap.Description)
}

func TestDayEvents_NapWithoutCheckIn(t *testing.T) {
	day := Day{
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Nap: &NapSpan{
			Start: time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 1, 13, 30, 0, 0, time.UTC),
		},
		NapMinutes: 60,
	}

	events := DayEvents(day)
	require.Len(t, events, 1)
	assert.Equal(t, "Nap (60 min)", events[0].Summary)
}

func TestEvents_WholeWeek(t *testing.T) {
	record, err := Build("123_45", &WeekPayload{Days: []DayPayload{
		{Date: "2024-01-01", CheckIn: "08:10", NapStart: "12:30", NapEnd: "14:00"},
		{Date: "2024-01-02", Absence: AbsenceUnmotivated},
		{Date: "2024-01-03", CheckIn: "08:45"},
	}}, 0, testNow)
	require.NoError(t, err)

	events := Events(record)
	require.Len(t, events, 3)
	assert.Equal(t, "School 08:10", events[0].Summary)
	assert.Equal(t, "Nap (90 min)", events[1].Summary)
	assert.Equal(t, "School 08:45", events[2].Summary)
}

func TestEvents_NilRecord(t *testing.T) {
	assert.Nil(t, Events(nil))
}
