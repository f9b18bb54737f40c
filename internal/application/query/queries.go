// Package query contains the read-side application service: everything
// the HTTP interface serves is assembled here from the archive, the
// child repository and the optional current-week cache.
package query

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/newsfeed"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// WeekCache is the read side of the optional current-week cache.
type WeekCache interface {
	GetCurrentWeek(ctx context.Context, childKey string) (*timeline.WeekRecord, error)
}

// NewsfeedFetcher fetches the live newsfeed for a child.
type NewsfeedFetcher interface {
	FetchNewsfeed(ctx context.Context, ch *child.Child) ([]newsfeed.Item, error)
}

// Service answers read queries. All methods are side-effect free.
type Service struct {
	children child.Repository
	store    archive.Store
	cache    WeekCache // may be nil
	newsfeed NewsfeedFetcher
	logger   *slog.Logger

	now func() time.Time
}

// NewService creates a query Service.
func NewService(
	children child.Repository,
	store archive.Store,
	cache WeekCache,
	newsfeed NewsfeedFetcher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		children: children,
		store:    store,
		cache:    cache,
		newsfeed: newsfeed,
		logger:   logger,
	}
}

// Children returns all known children.
func (s *Service) Children(ctx context.Context) ([]*child.Child, error) {
	return s.children.FindAll(ctx)
}

// Child returns one child by key.
func (s *Service) Child(ctx context.Context, childKey string) (*child.Child, error) {
	return s.children.FindByKey(ctx, childKey)
}

// CurrentWeek returns the live record for the current week, preferring the
// cache and falling back to the store. A missing record is not an error
// for a known child; it means no refresh has landed yet.
func (s *Service) CurrentWeek(ctx context.Context, childKey string) (*timeline.WeekRecord, error) {
	if _, err := s.children.FindByKey(ctx, childKey); err != nil {
		return nil, err
	}

	if s.cache != nil {
		record, err := s.cache.GetCurrentWeek(ctx, childKey)
		if err != nil {
			s.logger.Warn("current week cache read failed", "child", childKey, "error", err)
		} else if record != nil {
			return record, nil
		}
	}

	weekKey := timeutil.WeekKey(timeutil.MondayOf(s.clock()))
	record, err := s.store.Get(ctx, childKey, weekKey)
	if errors.Is(err, archive.ErrWeekNotFound) {
		return nil, nil
	}
	return record, err
}

// Week returns one stored week by its key, or archive.ErrWeekNotFound.
func (s *Service) Week(ctx context.Context, childKey, weekKey string) (*timeline.WeekRecord, error) {
	if _, err := s.children.FindByKey(ctx, childKey); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, childKey, weekKey)
}

// WeekSummary is one row of the archive index.
type WeekSummary struct {
	WeekKey  string `json:"week_key"`
	Days     int    `json:"days"`
	HasData  bool   `json:"has_data"`
	Archived bool   `json:"archived"`
}

// ArchiveIndex lists all stored weeks for a child, oldest first. The
// current week appears with Archived=false.
func (s *Service) ArchiveIndex(ctx context.Context, childKey string) ([]WeekSummary, error) {
	if _, err := s.children.FindByKey(ctx, childKey); err != nil {
		return nil, err
	}

	weeks, err := s.store.Weeks(ctx, childKey)
	if err != nil {
		return nil, err
	}

	currentKey := timeutil.WeekKey(timeutil.MondayOf(s.clock()))
	summaries := make([]WeekSummary, 0, len(weeks))
	for key, record := range weeks {
		summaries = append(summaries, WeekSummary{
			WeekKey:  key,
			Days:     len(record.Days),
			HasData:  record.HasRealData(),
			Archived: key < currentKey,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].WeekKey < summaries[j].WeekKey
	})
	return summaries, nil
}

// BackfillStatus returns the backfill progress record for a child.
func (s *Service) BackfillStatus(ctx context.Context, childKey string) (*archive.Progress, error) {
	if _, err := s.children.FindByKey(ctx, childKey); err != nil {
		return nil, err
	}
	return s.store.GetProgress(ctx, childKey)
}

// LatestCompleteDay returns the most recent day with real data, scanning
// the current week backward and then the archive. Returns nil when the
// child has no data at all.
func (s *Service) LatestCompleteDay(ctx context.Context, childKey string) (*timeline.Day, error) {
	current, err := s.CurrentWeek(ctx, childKey)
	if err != nil {
		return nil, err
	}
	if day := latestDayOf(current); day != nil {
		return day, nil
	}

	weeks, err := s.store.Weeks(ctx, childKey)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(weeks))
	for key := range weeks {
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	for _, key := range keys {
		if day := latestDayOf(weeks[key]); day != nil {
			return day, nil
		}
	}
	return nil, nil
}

// EventsBetween returns calendar events for all days in [from, to],
// merged from the archive and the live current week. Bounds are
// inclusive and compared at day granularity.
func (s *Service) EventsBetween(ctx context.Context, childKey string, from, to time.Time) ([]timeline.CalendarEvent, error) {
	if _, err := s.children.FindByKey(ctx, childKey); err != nil {
		return nil, err
	}
	if to.Before(from) {
		from, to = to, from
	}

	weeks, err := s.store.Weeks(ctx, childKey)
	if err != nil {
		return nil, err
	}

	// The cache may hold a fresher current-week record than the store.
	if current, err := s.CurrentWeek(ctx, childKey); err == nil && current != nil {
		weeks[current.Key()] = current
	}

	fromDay := timeutil.StartOfDay(from)
	toDay := timeutil.StartOfDay(to)

	var events []timeline.CalendarEvent
	for _, record := range weeks {
		for _, day := range record.Days {
			d := timeutil.StartOfDay(day.Date)
			if d.Before(fromDay) || d.After(toDay) {
				continue
			}
			events = append(events, timeline.DayEvents(day)...)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

// Newsfeed returns the live newsfeed for a child.
func (s *Service) Newsfeed(ctx context.Context, childKey string) ([]newsfeed.Item, error) {
	ch, err := s.children.FindByKey(ctx, childKey)
	if err != nil {
		return nil, err
	}
	return s.newsfeed.FetchNewsfeed(ctx, ch)
}

// latestDayOf returns the most recent day with real data in a record.
func latestDayOf(record *timeline.WeekRecord) *timeline.Day {
	if record == nil {
		return nil
	}
	for i := len(record.Days) - 1; i >= 0; i-- {
		if record.Days[i].HasRealData() {
			day := record.Days[i]
			return &day
		}
	}
	return nil
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
