package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"bleepy-challenge-service/internal/domain"
)

func TestLeaderboardCacheServesSnapshotUntilInvalidated(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewLeaderboardCache(client, time.Minute)
	ctx := context.Background()
	q := domain.LeaderboardQuery{Period: domain.PeriodAllTime, Limit: 10}

	loads := 0
	total := 100
	load := func(context.Context) ([]domain.LeaderboardEntry, error) {
		loads++
		return []domain.LeaderboardEntry{{UserID: "u1", TotalPoints: total}}, nil
	}

	first, err := cache.Leaderboard(ctx, q, load)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	total = 200
	second, _ := cache.Leaderboard(ctx, q, load)
	if loads != 1 || second[0].TotalPoints != first[0].TotalPoints {
		t.Fatalf("expected cached snapshot, loads=%d second=%+v", loads, second)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	third, _ := cache.Leaderboard(ctx, q, load)
	if loads != 2 || third[0].TotalPoints != 200 {
		t.Fatalf("expected reload after invalidate, loads=%d third=%+v", loads, third)
	}
}

func TestLeaderboardCacheDoesNotStoreFailures(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewLeaderboardCache(client, time.Minute)
	boom := errors.New("db down")

	_, err := cache.Leaderboard(context.Background(), domain.LeaderboardQuery{Period: domain.PeriodDaily, Limit: 5},
		func(context.Context) ([]domain.LeaderboardEntry, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no snapshot keys, got %v", keys)
	}
}

func TestLeaderboardCachePurge(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewLeaderboardCache(client, time.Minute)
	ctx := context.Background()
	load := func(context.Context) ([]domain.LeaderboardEntry, error) {
		return []domain.LeaderboardEntry{}, nil
	}
	for _, p := range []domain.Period{domain.PeriodAllTime, domain.PeriodDaily, domain.PeriodWeekly} {
		if _, err := cache.Leaderboard(ctx, domain.LeaderboardQuery{Period: p, Limit: 10}, load); err != nil {
			t.Fatalf("leaderboard %s: %v", p, err)
		}
	}

	n, err := cache.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 snapshots purged, got %d", n)
	}
	for _, k := range mr.Keys() {
		if k != generationKey {
			t.Fatalf("unexpected key left after purge: %s", k)
		}
	}
}
