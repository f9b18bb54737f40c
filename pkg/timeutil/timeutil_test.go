package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMondayOf(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday itself", monday, monday},
		{"midweek", time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC), monday},
		{"saturday", time.Date(2024, 1, 6, 23, 59, 0, 0, time.UTC), monday},
		{"sunday belongs to the same week", time.Date(2024, 1, 7, 8, 0, 0, 0, time.UTC), monday},
		{"next monday starts a new week", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), monday.AddDate(0, 0, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MondayOf(tt.in))
		})
	}
}

func TestMondayOf_KeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	require.NoError(t, err)

	in := time.Date(2024, 1, 3, 10, 0, 0, 0, loc)
	got := MondayOf(in)

	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, time.Monday, got.Weekday())
}

func TestWeekStart(t *testing.T) {
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC) // Wednesday

	assert.Equal(t, monday, WeekStart(now, 0))
	assert.Equal(t, monday.AddDate(0, 0, -7), WeekStart(now, -1))
	assert.Equal(t, monday.AddDate(0, 0, -70), WeekStart(now, -10))
	assert.Equal(t, monday.AddDate(0, 0, 7), WeekStart(now, 1))
}

func TestOffsetOf(t *testing.T) {
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, OffsetOf(now, now))
	assert.Equal(t, 0, OffsetOf(now, time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, OffsetOf(now, time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, OffsetOf(now, time.Date(2023, 12, 31, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, -52, OffsetOf(now, now.AddDate(0, 0, -52*7)))
	assert.Equal(t, 1, OffsetOf(now, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
}

func TestOffsetOf_AcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	require.NoError(t, err)

	// clocks spring forward on 2024-03-31, between these two Mondays
	now := time.Date(2024, 4, 3, 12, 0, 0, 0, loc)
	before := time.Date(2024, 3, 25, 0, 0, 0, 0, loc)

	assert.Equal(t, -1, OffsetOf(now, before))
	assert.Equal(t, -2, OffsetOf(now, before.AddDate(0, 0, -7)))
	assert.Equal(t, 1, OffsetOf(before, now))
}

func TestWeekStartOffsetOfRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	for offset := -80; offset <= 1; offset++ {
		assert.Equal(t, offset, OffsetOf(now, WeekStart(now, offset)))
	}
}

func TestWeekKey(t *testing.T) {
	assert.Equal(t, "2024-01-01", WeekKey(time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2023-12-25", WeekKey(time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC)))
}

func TestParseWeekKey(t *testing.T) {
	got, err := ParseWeekKey("2024-01-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, monday, got)

	_, err = ParseWeekKey("01.01.2024", time.UTC)
	assert.Error(t, err)
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2024, 1, 3, 17, 45, 12, 999, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), StartOfDay(in))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 1, 3, 0, 1, 0, 0, time.UTC)
	b := time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC)
	c := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}

func TestAtClock(t *testing.T) {
	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	got, ok := AtClock(day, "08:10")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 3, 8, 10, 0, 0, time.UTC), got)

	_, ok = AtClock(day, "")
	assert.False(t, ok)

	_, ok = AtClock(day, "25:00")
	assert.False(t, ok)

	_, ok = AtClock(day, "around nine")
	assert.False(t, ok)
}
