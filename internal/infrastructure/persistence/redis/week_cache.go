package redis

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
)

// ══════════════════════════════════════════════════════════════════════════════
// CURRENT WEEK CACHE
// ══════════════════════════════════════════════════════════════════════════════

// WeekCache caches the mutable current-week record per child. It
// satisfies both the poll coordinator's write side and the query
// service's read side.
type WeekCache struct {
	client *Client
}

// NewWeekCache creates a WeekCache.
func NewWeekCache(client *Client) *WeekCache {
	return &WeekCache{client: client}
}

func weekKey(childKey string) string {
	return PrefixCurrentWeek + childKey
}

// SetCurrentWeek stores the current-week record with the refresh TTL.
func (c *WeekCache) SetCurrentWeek(ctx context.Context, record *timeline.WeekRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cache: marshal week record: %w", err)
	}
	if err := c.client.rdb.Set(ctx, weekKey(record.ChildKey), body, TTLCurrentWeek).Err(); err != nil {
		return fmt.Errorf("cache: set current week: %w", err)
	}
	return nil
}

// GetCurrentWeek returns the cached record, or nil on a miss.
func (c *WeekCache) GetCurrentWeek(ctx context.Context, childKey string) (*timeline.WeekRecord, error) {
	body, err := c.client.rdb.Get(ctx, weekKey(childKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get current week: %w", err)
	}

	var record timeline.WeekRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("cache: unmarshal week record: %w", err)
	}
	return &record, nil
}

// InvalidateChild drops the cached record for a child.
func (c *WeekCache) InvalidateChild(ctx context.Context, childKey string) error {
	if err := c.client.rdb.Del(ctx, weekKey(childKey)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate child: %w", err)
	}
	return nil
}
