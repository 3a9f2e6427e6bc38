package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bleepy-challenge-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	leaderboardPrefix = "leaderboard:"
	generationKey     = leaderboardPrefix + "gen"
)

// LeaderboardCache stores computed leaderboards as JSON snapshots.
// Invalidate bumps a generation counter so older snapshots are never read
// again and age out through their TTL.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Leaderboard(ctx context.Context, q domain.LeaderboardQuery, load func(context.Context) ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return load(ctx)
	}
	key := snapshotKey(gen, q)
	if entries, ok := c.read(ctx, key); ok {
		return entries, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if entries, ok := c.read(ctx, key); ok {
			return entries, nil
		}
		entries, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(entries); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

// Purge deletes every snapshot and returns how many were removed.
func (c *LeaderboardCache) Purge(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, leaderboardPrefix+"v*", 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, c.Invalidate(ctx)
}

func (c *LeaderboardCache) read(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func snapshotKey(gen int64, q domain.LeaderboardQuery) string {
	return fmt.Sprintf("%sv%d:%s:%s:%s:%d", leaderboardPrefix, gen, q.Period, q.Category, q.Difficulty, q.Limit)
}
