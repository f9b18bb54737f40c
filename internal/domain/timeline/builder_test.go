package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-03 is a Wednesday; the week runs 2024-01-01 .. 2024-01-07.
var testNow = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func TestBuild_RequiresChildKey(t *testing.T) {
	_, err := Build("", &WeekPayload{}, 0, testNow)
	assert.Error(t, err)
}

func TestBuild_NilPayload(t *testing.T) {
	record, err := Build("123_45", nil, 0, testNow)
	require.NoError(t, err)

	assert.Equal(t, "123_45", record.ChildKey)
	assert.Empty(t, record.Days)
	assert.False(t, record.HasRealData())
	// Monday falls back to the offset week
	assert.Equal(t, "2024-01-01", record.Key())
}

func TestBuild_EmptyPayloadUsesOffsetWeek(t *testing.T) {
	record, err := Build("123_45", &WeekPayload{}, -3, testNow)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-11", record.Key())
}

func TestBuild_MondayDerivedFromDays(t *testing.T) {
	payload := &WeekPayload{Days: []DayPayload{
		{Date: "2023-12-13", CheckIn: "08:10"}, // Wednesday of an older week
	}}

	// The offset argument lies; the day dates win.
	record, err := Build("123_45", payload, 0, testNow)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-11", record.Key())
}

func TestBuild_SortsDaysAndSkipsUnparsable(t *testing.T) {
	payload := &WeekPayload{Days: []DayPayload{
		{Date: "2024-01-03", CheckIn: "08:30"},
		{Date: "not-a-date", CheckIn: "08:00"},
		{Date: "2024-01-01", CheckIn: "08:10"},
	}}

	record, err := Build("123_45", payload, 0, testNow)
	require.NoError(t, err)

	require.Len(t, record.Days, 2)
	assert.Equal(t, "monday", record.Days[0].Weekday())
	assert.Equal(t, "wednesday", record.Days[1].Weekday())
	assert.Equal(t, "2024-01-01", record.Key())
}

func TestBuild_NapRequiresBothTimes(t *testing.T) {
	payload := &WeekPayload{Days: []DayPayload{
		{Date: "2024-01-01", NapStart: "12:30", NapEnd: "14:00"},
		{Date: "2024-01-02", NapStart: "12:30"},
		{Date: "2024-01-03", NapEnd: "14:00"},
		{Date: "2024-01-04", NapStart: "14:00", NapEnd: "12:30"}, // inverted span
	}}

	record, err := Build("123_45", payload, 0, testNow)
	require.NoError(t, err)
	require.Len(t, record.Days, 4)

	withNap := record.Days[0]
	require.NotNil(t, withNap.Nap)
	assert.Equal(t, 90, withNap.NapMinutes)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC), withNap.Nap.Start)

	for _, day := range record.Days[1:] {
		assert.Nil(t, day.Nap, "day %s", day.Date)
		assert.Zero(t, day.NapMinutes)
	}
}

func TestBuild_Meals(t *testing.T) {
	payload := &WeekPayload{Days: []DayPayload{{
		Date:    "2024-01-01",
		CheckIn: "08:10",
		Meals: map[MealType]MealPayload{
			MealBreakfast: {Items: []string{"Porridge"}, Percent: intPtr(80), Kcal: 250, WeightGrams: 180},
			MealLunch:     {Items: []string{"Soup", "Chicken"}, Percent: intPtr(120)},
			MealSnack:     {Items: []string{"Apple"}, Percent: intPtr(50)},
		},
	}}}

	record, err := Build("123_45", payload, 0, testNow)
	require.NoError(t, err)
	require.Len(t, record.Days, 1)

	meals := record.Days[0].Meals
	require.Len(t, meals, 3)

	breakfast := meals[MealBreakfast]
	require.NotNil(t, breakfast.Percent)
	assert.Equal(t, 80, *breakfast.Percent)
	assert.Equal(t, 250, breakfast.Kcal)
	assert.Equal(t, 180, breakfast.WeightGrams)

	// out-of-range percent is clamped
	lunch := meals[MealLunch]
	require.NotNil(t, lunch.Percent)
	assert.Equal(t, 100, *lunch.Percent)

	// snack never carries a percent
	snack := meals[MealSnack]
	assert.Nil(t, snack.Percent)
	assert.Equal(t, []string{"Apple"}, snack.Items)
}

func TestBuild_AbsenceDay(t *testing.T) {
	payload := &WeekPayload{Days: []DayPayload{
		{Date: "2024-01-01", Absence: AbsenceMotivated},
	}}

	record, err := Build("123_45", payload, 0, testNow)
	require.NoError(t, err)
	require.Len(t, record.Days, 1)

	day := record.Days[0]
	assert.True(t, day.Absent())
	assert.True(t, day.HasRealData())
}

func TestBuild_Deterministic(t *testing.T) {
	payload := &WeekPayload{Days: []DayPayload{
		{Date: "2024-01-01", CheckIn: "08:10", NapStart: "12:30", NapEnd: "14:00"},
		{Date: "2024-01-02", Absence: AbsenceUnmotivated},
	}}

	a, err := Build("123_45", payload, 0, testNow)
	require.NoError(t, err)
	b, err := Build("123_45", payload, 0, testNow)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDay_HasRealData(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, Day{Date: date}.HasRealData())
	assert.True(t, Day{Date: date, CheckIn: "08:10"}.HasRealData())
	assert.True(t, Day{Date: date, Absence: AbsenceMotivated}.HasRealData())
	assert.True(t, Day{Date: date, Nap: &NapSpan{}}.HasRealData())
	assert.True(t, Day{Date: date, Meals: map[MealType]Meal{
		MealLunch: {Items: []string{"Soup"}},
	}}.HasRealData())
	// a meal block without items is planned menu noise, not attendance
	assert.False(t, Day{Date: date, Meals: map[MealType]Meal{
		MealLunch: {Kcal: 300},
	}}.HasRealData())
}

func TestWeekRecord_Day(t *testing.T) {
	record, err := Build("123_45", &WeekPayload{Days: []DayPayload{
		{Date: "2024-01-01", CheckIn: "08:10"},
		{Date: "2024-01-02", CheckIn: "08:20"},
	}}, 0, testNow)
	require.NoError(t, err)

	day := record.Day(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC))
	require.NotNil(t, day)
	assert.Equal(t, "08:20", day.CheckIn)

	assert.Nil(t, record.Day(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
}
