package redis

import (
	"context"
	"sync"
	"time"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// HubStore is a Redis-aware implementation of app.HubRepository.
// Hubs stay in a local map so fan-out reuses the in-process broadcast.
// Redis marks which challenges have an open stream on any node; the marker
// expires after ttl unless a new subscriber refreshes it.
type HubStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	hubs   map[string]*app.Hub
}

func NewHubStore(client *redis.Client, ttl time.Duration) *HubStore {
	return &HubStore{
		client: client,
		ttl:    ttl,
		hubs:   make(map[string]*app.Hub),
	}
}

func (s *HubStore) Subscribe(code string, initial domain.ChallengeView) (<-chan domain.ChallengeView, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[code]
	if !ok {
		hub = app.NewHub(code)
		s.hubs[code] = hub
	}
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), liveKey(code), "1", s.ttl).Err()
	return hub.Subscribe(initial)
}

func (s *HubStore) Get(code string) (*app.Hub, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hub, ok := s.hubs[code]
	return hub, ok
}

func (s *HubStore) DeleteIfIdle(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[code]
	if !ok || !hub.IsIdle() {
		return
	}
	delete(s.hubs, code)
	_ = s.client.Del(context.Background(), liveKey(code)).Err()
}

// Live checks the local hub first, then the shared marker set by other nodes.
func (s *HubStore) Live(ctx context.Context, code string) bool {
	if hub, ok := s.Get(code); ok && !hub.IsIdle() {
		return true
	}
	n, err := s.client.Exists(ctx, liveKey(code)).Result()
	return err == nil && n > 0
}

func liveKey(code string) string {
	return "challenge:live:" + code
}
