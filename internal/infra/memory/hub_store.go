package memory

import (
	"context"
	"sync"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/domain"
)

// HubStore is an in-memory implementation of app.HubRepository.
type HubStore struct {
	mu   sync.RWMutex
	hubs map[string]*app.Hub
}

func NewHubStore() *HubStore {
	return &HubStore{hubs: make(map[string]*app.Hub)}
}

func (s *HubStore) Subscribe(code string, initial domain.ChallengeView) (<-chan domain.ChallengeView, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[code]
	if !ok {
		hub = app.NewHub(code)
		s.hubs[code] = hub
	}
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
	if hub, ok := s.hubs[code]; ok && hub.IsIdle() {
		delete(s.hubs, code)
	}
}

func (s *HubStore) Live(_ context.Context, code string) bool {
	hub, ok := s.Get(code)
	return ok && !hub.IsIdle()
}
