// Package poll implements the coordinator that reconciles the live,
// mutable current week with the immutable archive. It owns three entry
// points driven by external ticks: the 15-minute current-week refresh,
// the once-per-week archive transition, and the zero-argument manual
// re-sync trigger.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kinderhub/kinderpedia-sync/internal/application/backfill"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// ChildrenFetcher discovers the children on the remote account.
type ChildrenFetcher interface {
	FetchChildren(ctx context.Context) ([]*child.Child, error)
}

// WeekCache is an optional fast-read cache for the mutable current-week
// record.
type WeekCache interface {
	SetCurrentWeek(ctx context.Context, record *timeline.WeekRecord) error
	InvalidateChild(ctx context.Context, childKey string) error
}

// Coordinator drives the per-child sync cycle. All of its methods are
// safe to invoke concurrently; writes to a single child's archive are
// serialized through the walker's keyed lock.
type Coordinator struct {
	fetcher   backfill.WeekFetcher
	accounts  ChildrenFetcher
	children  child.Repository
	store     archive.Store
	walker    *backfill.Walker
	cache     WeekCache             // may be nil
	publisher shared.EventPublisher
	logger    *slog.Logger

	location *time.Location
	now      func() time.Time
}

// New creates a Coordinator.
func New(
	fetcher backfill.WeekFetcher,
	accounts ChildrenFetcher,
	children child.Repository,
	store archive.Store,
	walker *backfill.Walker,
	cache WeekCache,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	location *time.Location,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if location == nil {
		location = time.Local
	}
	return &Coordinator{
		fetcher:   fetcher,
		accounts:  accounts,
		children:  children,
		store:     store,
		walker:    walker,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		location:  location,
	}
}

// RefreshChildren reconciles the local child list with the remote
// account list: new children are saved and announced, children that
// disappeared from the account are removed along with their state.
func (c *Coordinator) RefreshChildren(ctx context.Context) error {
	remote, err := c.accounts.FetchChildren(ctx)
	if err != nil {
		return err
	}

	known, err := c.children.FindAll(ctx)
	if err != nil {
		return err
	}
	knownByKey := make(map[string]*child.Child, len(known))
	for _, ch := range known {
		knownByKey[ch.Key()] = ch
	}

	remoteKeys := make(map[string]bool, len(remote))
	for _, ch := range remote {
		key := ch.Key()
		remoteKeys[key] = true
		if existing, ok := knownByKey[key]; ok {
			// Keep locally refined fields.
			ch.ID = existing.ID
			ch.EnrollmentStart = existing.EnrollmentStart
			ch.CreatedAt = existing.CreatedAt
		}
		if err := c.children.Save(ctx, ch); err != nil {
			c.logger.Error("save child failed", "child", key, "error", err)
			continue
		}
		if _, ok := knownByKey[key]; !ok {
			c.logger.Info("child discovered", "child", key, "name", ch.FullName())
			c.publish(ctx, shared.NewEvent(shared.EventChildDiscovered, key, map[string]any{
				"name":         ch.FullName(),
				"kindergarten": ch.KindergartenName,
			}))
		}
	}

	for key := range knownByKey {
		if !remoteKeys[key] {
			c.logger.Info("child removed from account, tearing down state", "child", key)
			if err := c.children.Remove(ctx, key); err != nil {
				c.logger.Error("remove child failed", "child", key, "error", err)
			}
			if err := c.store.RemoveChild(ctx, key); err != nil {
				c.logger.Error("remove archive state failed", "child", key, "error", err)
			}
			if c.cache != nil {
				if err := c.cache.InvalidateChild(ctx, key); err != nil {
					c.logger.Warn("cache invalidate failed", "child", key, "error", err)
				}
			}
		}
	}
	return nil
}

// RefreshCurrentWeek fetches week offset 0 for every child and overwrites
// the mutable current-week record. Failures for one child never stop the
// others.
func (c *Coordinator) RefreshCurrentWeek(ctx context.Context) error {
	children, err := c.children.FindAll(ctx)
	if err != nil {
		return err
	}

	for _, ch := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.refreshChild(ctx, ch); err != nil {
			c.logger.Warn("current week refresh failed, retrying next tick",
				"child", ch.Key(), "error", err)
		}
	}
	return nil
}

func (c *Coordinator) refreshChild(ctx context.Context, ch *child.Child) error {
	key := ch.Key()
	payload, err := c.fetcher.FetchWeek(ctx, ch, 0)
	if err != nil {
		return err
	}

	now := c.clock()
	record, err := timeline.Build(key, payload, 0, now)
	if err != nil {
		return err
	}

	locks := c.walker.Locks()
	locks.Lock(key)
	err = c.store.Put(ctx, record, timeutil.MondayOf(now))
	locks.Unlock(key)
	if err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.SetCurrentWeek(ctx, record); err != nil {
			c.logger.Warn("current week cache update failed", "child", key, "error", err)
		}
	}

	c.publish(ctx, shared.NewEvent(shared.EventCurrentWeekRefreshed, key, map[string]any{
		"week": record.Key(),
	}))
	return nil
}

// ArchiveLastWeek runs the weekly archive transition: the week that has
// just become "previous" (offset -1) is archived through the same
// build+put path as the live refresh. The transition is idempotent; a
// week already archived (by a concurrent walk, or because the tick fired
// twice) is a no-op.
func (c *Coordinator) ArchiveLastWeek(ctx context.Context) error {
	children, err := c.children.FindAll(ctx)
	if err != nil {
		return err
	}

	for _, ch := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.archiveLastWeekFor(ctx, ch); err != nil {
			c.logger.Warn("weekly archive failed, will recover on next pass",
				"child", ch.Key(), "error", err)
		}
	}
	return nil
}

func (c *Coordinator) archiveLastWeekFor(ctx context.Context, ch *child.Child) error {
	key := ch.Key()
	now := c.clock()
	weekKey := timeutil.WeekKey(timeutil.WeekStart(now, -1))

	has, err := c.store.Has(ctx, key, weekKey)
	if err != nil {
		return err
	}
	if has {
		c.logger.Debug("weekly archive: week already stored", "child", key, "week", weekKey)
		return nil
	}

	payload, err := c.fetcher.FetchWeek(ctx, ch, -1)
	if err != nil {
		return err
	}

	record, err := timeline.Build(key, payload, -1, now)
	if err != nil {
		return err
	}
	if !record.HasRealData() {
		c.logger.Debug("weekly archive: no data for last week", "child", key, "week", weekKey)
		return nil
	}

	locks := c.walker.Locks()
	locks.Lock(key)
	err = c.store.Put(ctx, record, timeutil.MondayOf(now))
	locks.Unlock(key)

	if errors.Is(err, archive.ErrAlreadyArchived) {
		c.logger.Warn("weekly archive: immutable week write refused", "child", key, "week", weekKey)
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info("weekly archive: week stored", "child", key, "week", weekKey)
	c.publish(ctx, shared.NewEvent(shared.EventWeekArchived, key, map[string]any{
		"week":   record.Key(),
		"offset": -1,
	}))
	return nil
}

// EnsureBackfilled starts (or resumes) the backfill walk for every child
// that is not COMPLETE, and verifies contiguity for those that are. Walks
// for different children run concurrently; EnsureBackfilled returns when
// all of them have finished or suspended.
func (c *Coordinator) EnsureBackfilled(ctx context.Context) error {
	return c.walkAll(ctx)
}

// ResyncAll is the zero-argument manual trigger: it (re)starts the
// backfill walk for all configured children. Safe to invoke concurrently
// with in-progress walks; per-child starts coalesce into the running walk
// instead of stacking a second one.
func (c *Coordinator) ResyncAll(ctx context.Context) error {
	c.logger.Info("manual re-sync triggered")
	return c.walkAll(ctx)
}

func (c *Coordinator) walkAll(ctx context.Context) error {
	children, err := c.children.FindAll(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, ch := range children {
		wg.Add(1)
		go func(ch *child.Child) {
			defer wg.Done()
			if err := c.walker.Run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("backfill walk ended with error", "child", ch.Key(), "error", err)
			}
		}(ch)
	}
	wg.Wait()
	return nil
}

func (c *Coordinator) publish(ctx context.Context, event shared.Event) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("event publish failed", "type", event.Type, "error", err)
	}
}

func (c *Coordinator) clock() time.Time {
	if c.now != nil {
		return c.now().In(c.location)
	}
	return time.Now().In(c.location)
}
