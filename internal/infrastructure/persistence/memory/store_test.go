package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
)

// 2024-04-08 is a Monday.
var currentMonday = time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)

func record(monday time.Time, checkIn string) *timeline.WeekRecord {
	return &timeline.WeekRecord{
		ChildKey: "101_7",
		Monday:   monday,
		Days: []timeline.Day{
			{Date: monday, CheckIn: checkIn},
		},
		FetchedAt: currentMonday,
	}
}

func TestArchiveStore_PutAndGet(t *testing.T) {
	store := NewArchiveStore()
	rec := record(currentMonday.AddDate(0, 0, -7), "08:10")

	require.NoError(t, store.Put(context.Background(), rec, currentMonday))

	got, err := store.Get(context.Background(), "101_7", rec.Key())
	require.NoError(t, err)
	assert.Equal(t, rec.Key(), got.Key())
	assert.Equal(t, "08:10", got.Days[0].CheckIn)

	has, err := store.Has(context.Background(), "101_7", rec.Key())
	require.NoError(t, err)
	assert.True(t, has)

	_, err = store.Get(context.Background(), "101_7", "2020-01-06")
	assert.ErrorIs(t, err, archive.ErrWeekNotFound)
}

func TestArchiveStore_PastWeekIsImmutable(t *testing.T) {
	store := NewArchiveStore()
	monday := currentMonday.AddDate(0, 0, -7)

	require.NoError(t, store.Put(context.Background(), record(monday, "08:10"), currentMonday))

	err := store.Put(context.Background(), record(monday, "09:00"), currentMonday)
	assert.ErrorIs(t, err, archive.ErrAlreadyArchived)

	got, err := store.Get(context.Background(), "101_7", record(monday, "").Key())
	require.NoError(t, err)
	assert.Equal(t, "08:10", got.Days[0].CheckIn)
}

func TestArchiveStore_CurrentWeekIsOverwritable(t *testing.T) {
	store := NewArchiveStore()

	require.NoError(t, store.Put(context.Background(), record(currentMonday, "08:10"), currentMonday))
	require.NoError(t, store.Put(context.Background(), record(currentMonday, "08:30"), currentMonday))

	got, err := store.Get(context.Background(), "101_7", record(currentMonday, "").Key())
	require.NoError(t, err)
	assert.Equal(t, "08:30", got.Days[0].CheckIn)
}

func TestArchiveStore_ArchiveWritesRecordAndProgressTogether(t *testing.T) {
	store := NewArchiveStore()
	monday := currentMonday.AddDate(0, 0, -7)

	progress := archive.NewProgress("101_7")
	progress.Start()
	progress.Checkpoint(-1)

	require.NoError(t, store.Archive(context.Background(), record(monday, "08:10"), progress, currentMonday))

	got, err := store.GetProgress(context.Background(), "101_7")
	require.NoError(t, err)
	require.NotNil(t, got.OldestOffset)
	assert.Equal(t, -1, *got.OldestOffset)
}

func TestArchiveStore_ArchiveRefusedLeavesProgressUntouched(t *testing.T) {
	store := NewArchiveStore()
	monday := currentMonday.AddDate(0, 0, -7)
	require.NoError(t, store.Put(context.Background(), record(monday, "08:10"), currentMonday))

	progress := archive.NewProgress("101_7")
	progress.Start()
	progress.Checkpoint(-1)

	err := store.Archive(context.Background(), record(monday, "09:00"), progress, currentMonday)
	assert.ErrorIs(t, err, archive.ErrAlreadyArchived)

	got, err := store.GetProgress(context.Background(), "101_7")
	require.NoError(t, err)
	assert.Equal(t, archive.StatusNotStarted, got.Status)
	assert.Nil(t, got.OldestOffset)
}

func TestArchiveStore_GetProgressDefaults(t *testing.T) {
	store := NewArchiveStore()

	got, err := store.GetProgress(context.Background(), "101_7")
	require.NoError(t, err)
	assert.Equal(t, "101_7", got.ChildKey)
	assert.Equal(t, archive.StatusNotStarted, got.Status)
}

func TestArchiveStore_RemoveChild(t *testing.T) {
	store := NewArchiveStore()
	monday := currentMonday.AddDate(0, 0, -7)
	require.NoError(t, store.Put(context.Background(), record(monday, "08:10"), currentMonday))
	require.NoError(t, store.SaveProgress(context.Background(), archive.NewProgress("101_7")))

	require.NoError(t, store.RemoveChild(context.Background(), "101_7"))

	weeks, err := store.Weeks(context.Background(), "101_7")
	require.NoError(t, err)
	assert.Empty(t, weeks)

	got, err := store.GetProgress(context.Background(), "101_7")
	require.NoError(t, err)
	assert.Equal(t, archive.StatusNotStarted, got.Status)
}

func TestArchiveStore_ReturnsCopies(t *testing.T) {
	store := NewArchiveStore()
	require.NoError(t, store.Put(context.Background(), record(currentMonday, "08:10"), currentMonday))

	got, err := store.Get(context.Background(), "101_7", record(currentMonday, "").Key())
	require.NoError(t, err)
	got.Days[0].CheckIn = "mutated"

	again, err := store.Get(context.Background(), "101_7", record(currentMonday, "").Key())
	require.NoError(t, err)
	assert.Equal(t, "08:10", again.Days[0].CheckIn)
}
