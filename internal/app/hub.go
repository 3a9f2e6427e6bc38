package app

import (
	"context"
	"sort"
	"sync"

	"bleepy-challenge-service/internal/domain"
)

// HubRepository tracks live hubs keyed by challenge code (in-memory, Redis-marked, etc).
type HubRepository interface {
	// Subscribe attaches a subscriber to the code's hub, creating the hub when
	// missing. Lookup and attach happen under the same lock as DeleteIfIdle.
	Subscribe(code string, initial domain.ChallengeView) (<-chan domain.ChallengeView, func())
	Get(code string) (*Hub, bool)
	DeleteIfIdle(code string)
	// Live reports whether the challenge has an open stream.
	Live(ctx context.Context, code string) bool
}

// Hub fans challenge snapshots out to the subscribers of one challenge.
type Hub struct {
	code        string
	mu          sync.Mutex
	subscribers map[chan domain.ChallengeView]struct{}
}

func NewHub(code string) *Hub {
	return &Hub{
		code:        code,
		subscribers: make(map[chan domain.ChallengeView]struct{}),
	}
}

func (h *Hub) Code() string { return h.code }

// IsIdle reports whether nobody is subscribed.
func (h *Hub) IsIdle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers) == 0
}

// Publish delivers view to every subscriber. A subscriber that has fallen
// behind loses its oldest pending snapshot.
func (h *Hub) Publish(view domain.ChallengeView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

// Subscribe registers a buffered subscriber seeded with initial.
func (h *Hub) Subscribe(initial domain.ChallengeView) (<-chan domain.ChallengeView, func()) {
	ch := make(chan domain.ChallengeView, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	ch <- initial
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Subscribe returns a channel of challenge snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ChallengeService) Subscribe(ctx context.Context, code string) (<-chan domain.ChallengeView, func(), error) {
	view, err := s.Challenge(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	view.Live = true
	ch, cancel := s.hubs.Subscribe(code, view)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancel()
			s.hubs.DeleteIfIdle(code)
		})
	}, nil
}

// Challenge returns the current snapshot of a challenge.
func (s *ChallengeService) Challenge(ctx context.Context, code string) (domain.ChallengeView, error) {
	if err := s.validateCode(code); err != nil {
		return domain.ChallengeView{}, err
	}
	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return domain.ChallengeView{}, err
	}
	return s.buildView(ctx, ch)
}

func (s *ChallengeService) buildView(ctx context.Context, ch domain.Challenge) (domain.ChallengeView, error) {
	participants, err := s.participants(ctx, ch.ID)
	if err != nil {
		return domain.ChallengeView{}, err
	}
	answers, err := s.answers(ctx, ch.ID)
	if err != nil {
		return domain.ChallengeView{}, err
	}

	progress := make(map[string]*domain.ParticipantView, len(participants))
	views := make([]domain.ParticipantView, len(participants))
	for i, p := range participants {
		views[i] = domain.ParticipantView{Participant: p}
	}
	for i := range views {
		progress[views[i].ID] = &views[i]
	}
	for _, a := range answers {
		pv, ok := progress[a.ParticipantID]
		if !ok || !domain.HasRecordedAnswer(a) {
			continue
		}
		pv.Answered++
		if a.PointsEarned != nil {
			pv.TotalPoints += *a.PointsEarned
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].JoinedAt.Before(views[j].JoinedAt)
	})

	return domain.ChallengeView{
		Challenge:    ch,
		Participants: views,
		Live:         s.hubs.Live(ctx, ch.Code),
		UpdatedAt:    s.now(),
	}, nil
}

// publish pushes a fresh snapshot when someone is listening. Callers hold the challenge lock.
func (s *ChallengeService) publish(ctx context.Context, code string) {
	hub, ok := s.hubs.Get(code)
	if !ok {
		return
	}
	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		s.log.WithError(err).WithField("code", code).Warn("publish: reload challenge")
		return
	}
	view, err := s.buildView(ctx, ch)
	if err != nil {
		s.log.WithError(err).WithField("code", code).Warn("publish: build snapshot")
		return
	}
	hub.Publish(view)
}
