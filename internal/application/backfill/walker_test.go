package backfill

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/internal/infrastructure/persistence/memory"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// 2024-04-10 is a Wednesday; the current week starts 2024-04-08.
var walkNow = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

// fakeFetcher scripts the remote sliding-week view: offsets at or past the
// boundary come back empty, everything newer carries one check-in day.
type fakeFetcher struct {
	mu       sync.Mutex
	now      time.Time   // clock payload dates are generated against; walkNow when zero
	boundary int         // offsets <= boundary return empty weeks
	emptyAt  map[int]int // offset -> empty responses served before data
	err      error       // when set, every fetch fails with it
	calls    []int
}

func (f *fakeFetcher) FetchWeek(_ context.Context, _ *child.Child, offset int) (*timeline.WeekPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, offset)

	if f.err != nil {
		return nil, f.err
	}
	if remaining := f.emptyAt[offset]; remaining > 0 {
		f.emptyAt[offset] = remaining - 1
		return &timeline.WeekPayload{}, nil
	}
	if offset <= f.boundary {
		return &timeline.WeekPayload{}, nil
	}
	base := f.now
	if base.IsZero() {
		base = walkNow
	}
	return payloadAt(base, offset), nil
}

func (f *fakeFetcher) fetched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func payloadFor(offset int) *timeline.WeekPayload {
	return payloadAt(walkNow, offset)
}

func payloadAt(now time.Time, offset int) *timeline.WeekPayload {
	monday := timeutil.WeekStart(now, offset)
	return &timeline.WeekPayload{Days: []timeline.DayPayload{
		{Date: monday.Format("2006-01-02"), CheckIn: "08:10"},
	}}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event shared.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func testChild(t *testing.T) *child.Child {
	t.Helper()
	ch, err := child.New(101, 7, "Maria", "Ionescu", "Sunshine")
	require.NoError(t, err)
	return ch
}

func testConfig() Config {
	return Config{
		StepDelay:              time.Millisecond,
		EmptyWeekRetryLimit:    2,
		MaxConsecutiveFailures: 3,
		MaxWeeksPerWalk:        520,
	}
}

func newTestWalker(t *testing.T, fetcher *fakeFetcher, store *memory.ArchiveStore, repo *memory.ChildRepository, publisher shared.EventPublisher, cfg Config) *Walker {
	t.Helper()
	w := NewWalker(fetcher, store, repo, publisher, nil, time.UTC, cfg)
	w.now = func() time.Time { return walkNow }
	return w
}

func seedWeek(t *testing.T, store *memory.ArchiveStore, ch *child.Child, offset int) {
	t.Helper()
	record, err := timeline.Build(ch.Key(), payloadFor(offset), offset, walkNow)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), record, timeutil.MondayOf(walkNow)))
}

func TestWalkerRun_WalksToBoundary(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))
	fetcher := &fakeFetcher{boundary: -6}
	publisher := &recordingPublisher{}
	w := newTestWalker(t, fetcher, store, repo, publisher, testConfig())

	require.NoError(t, w.Run(context.Background(), ch))

	progress, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.True(t, progress.IsComplete())
	require.NotNil(t, progress.BoundaryOffset)
	assert.Equal(t, -6, *progress.BoundaryOffset)
	require.NotNil(t, progress.OldestOffset)
	assert.Equal(t, -5, *progress.OldestOffset)

	for offset := -1; offset >= -5; offset-- {
		weekKey := timeutil.WeekKey(timeutil.WeekStart(walkNow, offset))
		has, err := store.Has(context.Background(), ch.Key(), weekKey)
		require.NoError(t, err)
		assert.True(t, has, "week %s missing", weekKey)
	}

	// the boundary week itself is never stored
	boundaryKey := timeutil.WeekKey(timeutil.WeekStart(walkNow, -6))
	has, err := store.Has(context.Background(), ch.Key(), boundaryKey)
	require.NoError(t, err)
	assert.False(t, has)

	// five data weeks plus three empty answers at the boundary
	assert.Equal(t, []int{-1, -2, -3, -4, -5, -6, -6, -6}, fetcher.fetched())

	// enrollment start refined to the oldest week with data
	saved, err := repo.FindByKey(context.Background(), ch.Key())
	require.NoError(t, err)
	require.NotNil(t, saved.EnrollmentStart)
	assert.Equal(t, timeutil.WeekStart(walkNow, -5), *saved.EnrollmentStart)

	types := publisher.types()
	assert.Contains(t, types, shared.EventBackfillStarted)
	assert.Contains(t, types, shared.EventWeekArchived)
	assert.Contains(t, types, shared.EventBackfillCompleted)
}

func TestWalkerRun_ResumesFromCheckpoint(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	for offset := -1; offset >= -3; offset-- {
		seedWeek(t, store, ch, offset)
	}
	progress := archive.NewProgress(ch.Key())
	progress.Start()
	progress.Checkpoint(-3)
	require.NoError(t, store.SaveProgress(context.Background(), progress))

	fetcher := &fakeFetcher{boundary: -5}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	require.NoError(t, w.Run(context.Background(), ch))

	// already-archived weeks are not re-fetched
	assert.Equal(t, []int{-4, -5, -5, -5}, fetcher.fetched())

	got, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.True(t, got.IsComplete())
}

func TestWalkerRun_SkipsArchivedWeeksWithoutCheckpoint(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	// weeks exist but the progress record was lost
	for offset := -1; offset >= -3; offset-- {
		seedWeek(t, store, ch, offset)
	}

	fetcher := &fakeFetcher{boundary: -4}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	require.NoError(t, w.Run(context.Background(), ch))

	// the stored weeks advance the checkpoint without any fetch
	assert.Equal(t, []int{-4, -4, -4}, fetcher.fetched())

	got, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.True(t, got.IsComplete())
	require.NotNil(t, got.BoundaryOffset)
	assert.Equal(t, -4, *got.BoundaryOffset)
}

func TestWalkerRun_EmptyWeekRetriedBeforeBoundary(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	// a transient hole: -1 answers empty twice, then delivers data
	fetcher := &fakeFetcher{boundary: -2, emptyAt: map[int]int{-1: 2}}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	require.NoError(t, w.Run(context.Background(), ch))

	assert.Equal(t, []int{-1, -1, -1, -2, -2, -2}, fetcher.fetched())

	weekKey := timeutil.WeekKey(timeutil.WeekStart(walkNow, -1))
	has, err := store.Has(context.Background(), ch.Key(), weekKey)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.True(t, got.IsComplete())
	require.NotNil(t, got.BoundaryOffset)
	assert.Equal(t, -2, *got.BoundaryOffset)
}

func TestWalkerRun_SuspendsAfterConsecutiveTransientFailures(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	fetcher := &fakeFetcher{err: shared.ErrAPIUnavailable}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	require.NoError(t, w.Run(context.Background(), ch))

	assert.Len(t, fetcher.fetched(), 3)

	got, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.Equal(t, archive.StatusInProgress, got.Status)
	assert.False(t, got.IsComplete())
}

func TestWalkerRun_SuspendsImmediatelyOnPermanentFailure(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	fetcher := &fakeFetcher{err: shared.ErrAPIInvalidResponse}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	require.NoError(t, w.Run(context.Background(), ch))
	assert.Len(t, fetcher.fetched(), 1)
}

func TestWalkerRun_FetchCapSuspendsWalk(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	cfg := testConfig()
	cfg.MaxWeeksPerWalk = 10
	fetcher := &fakeFetcher{boundary: -1000}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, cfg)

	require.NoError(t, w.Run(context.Background(), ch))

	assert.Len(t, fetcher.fetched(), 10)

	got, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.False(t, got.IsComplete())
}

func TestWalkerRun_CoalescesConcurrentRuns(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	fetcher := &fakeFetcher{boundary: -3}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	// simulate a walk already holding the per-child guard
	require.True(t, w.guard.tryAcquire(ch.Key()))
	require.NoError(t, w.Run(context.Background(), ch))
	assert.Empty(t, fetcher.fetched())
	w.guard.release(ch.Key())

	require.NoError(t, w.Run(context.Background(), ch))
	assert.NotEmpty(t, fetcher.fetched())
}

func TestWalkerRun_CompletedContiguousWalkIsNoOp(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	fetcher := &fakeFetcher{boundary: -4}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	require.NoError(t, w.Run(context.Background(), ch))
	firstPass := len(fetcher.fetched())

	require.NoError(t, w.Run(context.Background(), ch))
	assert.Equal(t, firstPass, len(fetcher.fetched()), "second run must not fetch")
}

func TestWalkerRun_RewalksGapBehindCompletedWalk(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	fetcher := &fakeFetcher{boundary: -4}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())
	require.NoError(t, w.Run(context.Background(), ch))

	// storage cleared underneath a completed walk
	missingKey := timeutil.WeekKey(timeutil.WeekStart(walkNow, -2))
	store.DeleteWeek(ch.Key(), missingKey)

	before := len(fetcher.fetched())
	require.NoError(t, w.Run(context.Background(), ch))
	secondPass := fetcher.fetched()[before:]

	// only the missing week and the boundary are fetched again
	assert.Equal(t, []int{-2, -4, -4, -4}, secondPass)

	has, err := store.Has(context.Background(), ch.Key(), missingKey)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.True(t, got.IsComplete())
}

func TestWalkerRun_DetectsGapWeeksAfterCompletion(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	fetcher := &fakeFetcher{boundary: -4}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())
	require.NoError(t, w.Run(context.Background(), ch))

	// five calendar weeks pass; the weekly transitions kept the archive
	// contiguous up to the new current week
	later := walkNow.AddDate(0, 0, 5*7)
	for offset := -1; offset >= -5; offset-- {
		record, err := timeline.Build(ch.Key(), payloadAt(later, offset), offset, later)
		require.NoError(t, err)
		require.NoError(t, store.Put(context.Background(), record, timeutil.MondayOf(later)))
	}

	// an immutable week near the enrollment boundary is cleared externally
	missingKey := timeutil.WeekKey(timeutil.WeekStart(walkNow, -3))
	store.DeleteWeek(ch.Key(), missingKey)

	w.now = func() time.Time { return later }
	fetcher.now = later
	fetcher.boundary = -9 // the same boundary week, addressed from later

	before := len(fetcher.fetched())
	require.NoError(t, w.Run(context.Background(), ch))
	secondPass := fetcher.fetched()[before:]

	// the cleared week sits at offset -8 by now; only it and the boundary
	// are fetched again
	assert.Equal(t, []int{-8, -9, -9, -9}, secondPass)

	has, err := store.Has(context.Background(), ch.Key(), missingKey)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := store.GetProgress(context.Background(), ch.Key())
	require.NoError(t, err)
	assert.True(t, got.IsComplete())
	assert.Equal(t, timeutil.WeekKey(timeutil.WeekStart(walkNow, -4)), got.BoundaryWeek)
}

func TestWalkerRun_StepDelaySpacesFetches(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	cfg := testConfig()
	cfg.StepDelay = 30 * time.Millisecond
	fetcher := &fakeFetcher{boundary: -2}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, cfg)

	start := time.Now()
	require.NoError(t, w.Run(context.Background(), ch))
	elapsed := time.Since(start)

	// one data week plus three empty answers at the boundary
	require.Len(t, fetcher.fetched(), 4)
	assert.GreaterOrEqual(t, elapsed, 3*cfg.StepDelay)
}

func TestWalkerRun_ContextCancellation(t *testing.T) {
	ch := testChild(t)
	store := memory.NewArchiveStore()
	repo := memory.NewChildRepository()
	require.NoError(t, repo.Save(context.Background(), ch))

	fetcher := &fakeFetcher{boundary: -50}
	w := newTestWalker(t, fetcher, store, repo, shared.NopPublisher{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, ch)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.fetched())
}

func TestKeyedLock(t *testing.T) {
	locks := NewKeyedLock()

	locks.Lock("a")
	acquired := make(chan struct{})
	go func() {
		locks.Lock("a")
		close(acquired)
		locks.Unlock("a")
	}()

	// a different key is not blocked
	locks.Lock("b")
	locks.Unlock("b")

	select {
	case <-acquired:
		t.Fatal("lock for the same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	locks.Unlock("a")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never released")
	}
}
