package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-02-26 is a Monday.
var boundaryMonday = time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)

func TestNewProgress(t *testing.T) {
	p := NewProgress("123_45")

	assert.Equal(t, "123_45", p.ChildKey)
	assert.Equal(t, StatusNotStarted, p.Status)
	assert.Nil(t, p.OldestOffset)
	assert.Nil(t, p.BoundaryOffset)
	assert.True(t, p.NeedsWalk())
	assert.False(t, p.IsComplete())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusNotStarted.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusComplete.Valid())
	assert.False(t, Status("paused").Valid())
	assert.False(t, Status("").Valid())
}

func TestProgress_NextOffset(t *testing.T) {
	p := NewProgress("123_45")
	assert.Equal(t, -1, p.NextOffset())

	p.Checkpoint(-1)
	assert.Equal(t, -2, p.NextOffset())

	p.Checkpoint(-7)
	assert.Equal(t, -8, p.NextOffset())
}

func TestProgress_Checkpoint(t *testing.T) {
	p := NewProgress("123_45")
	p.Start()
	p.EmptyStreak = 1

	p.Checkpoint(-3)

	require.NotNil(t, p.OldestOffset)
	assert.Equal(t, -3, *p.OldestOffset)
	assert.Equal(t, 0, p.EmptyStreak)
	assert.Equal(t, StatusInProgress, p.Status)
}

func TestProgress_RecordEmpty(t *testing.T) {
	p := NewProgress("123_45")
	p.Start()

	// retry limit 2: two retries are allowed, the third empty answer
	// exhausts the budget
	assert.False(t, p.RecordEmpty(2))
	assert.False(t, p.RecordEmpty(2))
	assert.True(t, p.RecordEmpty(2))
	assert.Equal(t, 3, p.EmptyStreak)
}

func TestProgress_RecordEmpty_ZeroLimit(t *testing.T) {
	p := NewProgress("123_45")
	p.Start()

	// limit 0 means the first empty answer is final
	assert.True(t, p.RecordEmpty(0))
}

func TestProgress_Complete(t *testing.T) {
	p := NewProgress("123_45")
	p.Start()
	p.Checkpoint(-5)
	p.EmptyStreak = 3

	err := p.Complete(-6, boundaryMonday)
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, p.Status)
	require.NotNil(t, p.BoundaryOffset)
	assert.Equal(t, -6, *p.BoundaryOffset)
	assert.Equal(t, "2024-02-26", p.BoundaryWeek)
	assert.Equal(t, 0, p.EmptyStreak)
	assert.True(t, p.IsComplete())
	assert.False(t, p.NeedsWalk())
}

func TestProgress_Complete_RequiresInProgress(t *testing.T) {
	p := NewProgress("123_45")

	err := p.Complete(-6, boundaryMonday)
	assert.Error(t, err)
	assert.Equal(t, StatusNotStarted, p.Status)
}

func TestProgress_Restart_AfterComplete(t *testing.T) {
	p := NewProgress("123_45")
	p.Start()
	p.Checkpoint(-5)
	require.NoError(t, p.Complete(-6, boundaryMonday))

	// manual re-sync path: a completed walk may start again
	p.Start()

	assert.Equal(t, StatusInProgress, p.Status)
	assert.Nil(t, p.BoundaryOffset)
	assert.Empty(t, p.BoundaryWeek)
	assert.Equal(t, 0, p.EmptyStreak)
	// the archived checkpoint survives the restart
	require.NotNil(t, p.OldestOffset)
	assert.Equal(t, -5, *p.OldestOffset)
}

func TestProgress_Rewind(t *testing.T) {
	p := NewProgress("123_45")
	p.Start()
	p.Checkpoint(-10)

	p.Rewind()

	assert.Nil(t, p.OldestOffset)
	assert.Equal(t, -1, p.NextOffset())
}
