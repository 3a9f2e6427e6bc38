package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bleepy-challenge-service/internal/domain"
)

// Store is an in-memory implementation of app.ChallengeStore and app.Ledger.
// A single mutex makes every multi-row operation atomic.
type Store struct {
	mu           sync.Mutex
	challenges   map[string]domain.Challenge
	codes        map[string]string
	participants map[string][]domain.Participant
	answers      map[string][]domain.Answer
	xp           []domain.XPTransaction
	userXP       map[string]domain.UserXP
}

func NewStore() *Store {
	return &Store{
		challenges:   make(map[string]domain.Challenge),
		codes:        make(map[string]string),
		participants: make(map[string][]domain.Participant),
		answers:      make(map[string][]domain.Answer),
		userXP:       make(map[string]domain.UserXP),
	}
}

func (s *Store) CreateChallenge(_ context.Context, ch domain.Challenge, host domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[ch.Code]; taken {
		return domain.ErrCodeTaken
	}
	s.challenges[ch.ID] = cloneChallenge(ch)
	s.codes[ch.Code] = ch.ID
	s.participants[ch.ID] = []domain.Participant{host}
	return nil
}

func (s *Store) ChallengeByCode(_ context.Context, code string) (domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return cloneChallenge(s.challenges[id]), nil
}

func (s *Store) Participants(_ context.Context, challengeID string) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Participant(nil), s.participants[challengeID]...), nil
}

func (s *Store) AddParticipant(_ context.Context, p domain.Participant, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[p.ChallengeID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	if ch.Status != domain.StatusLobby {
		return domain.ErrChallengeNotJoinable
	}
	current := s.participants[p.ChallengeID]
	for _, existing := range current {
		if existing.UserID == p.UserID {
			return domain.ErrAlreadyJoined
		}
	}
	if limit > 0 && len(current) >= limit {
		return domain.ErrChallengeFull
	}
	s.participants[p.ChallengeID] = append(current, p)
	return nil
}

func (s *Store) UpdateParticipant(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.participants[p.ChallengeID]
	for i := range current {
		if current[i].ID == p.ID {
			current[i] = p
			return nil
		}
	}
	return domain.ErrParticipantNotFound
}

func (s *Store) RemoveParticipant(_ context.Context, challengeID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.participants[challengeID]
	idx := -1
	for i := range current {
		if current[i].ID == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrParticipantNotFound
	}

	var kept []domain.Answer
	for _, a := range s.answers[challengeID] {
		if a.ParticipantID != participantID {
			kept = append(kept, a)
		}
	}
	s.answers[challengeID] = kept
	s.participants[challengeID] = append(current[:idx:idx], current[idx+1:]...)
	return nil
}

func (s *Store) ActivateChallenge(_ context.Context, ch domain.Challenge, placeholders []domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.challenges[ch.ID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	if stored.Status != domain.StatusLobby {
		return domain.ErrStaleChallengeState
	}
	seen := make(map[[2]string]struct{}, len(placeholders))
	for _, a := range placeholders {
		key := [2]string{a.ParticipantID, a.QuestionID}
		if _, dup := seen[key]; dup {
			return domain.ErrAnswerAlreadyRecorded
		}
		seen[key] = struct{}{}
	}

	stored.Status = domain.StatusActive
	stored.QuestionIDs = append([]string(nil), ch.QuestionIDs...)
	stored.StartedAt = ch.StartedAt
	s.challenges[ch.ID] = stored
	for i := range s.participants[ch.ID] {
		s.participants[ch.ID][i].Status = domain.ParticipantPlaying
	}
	s.answers[ch.ID] = append(s.answers[ch.ID], placeholders...)
	return nil
}

func (s *Store) CompleteChallenge(_ context.Context, challengeID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.challenges[challengeID]
	if !ok {
		return false, domain.ErrChallengeNotFound
	}
	if stored.Status != domain.StatusActive {
		return false, nil
	}
	stored.Status = domain.StatusCompleted
	stored.CompletedAt = &at
	s.challenges[challengeID] = stored
	for i := range s.participants[challengeID] {
		s.participants[challengeID][i].Status = domain.ParticipantFinished
	}
	return true, nil
}

func (s *Store) Answers(_ context.Context, challengeID string) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Answer(nil), s.answers[challengeID]...), nil
}

func (s *Store) RecordAnswer(_ context.Context, answer domain.Answer, xp *domain.XPTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.answers[answer.ChallengeID]
	for i := range rows {
		if rows[i].ParticipantID != answer.ParticipantID || rows[i].QuestionID != answer.QuestionID {
			continue
		}
		if domain.HasRecordedAnswer(rows[i]) {
			return domain.ErrAnswerAlreadyRecorded
		}
		rows[i] = answer
		if xp != nil {
			s.creditLocked(*xp)
		}
		return nil
	}
	return domain.ErrQuestionNotInChallenge
}

func (s *Store) creditLocked(tx domain.XPTransaction) {
	s.xp = append(s.xp, tx)
	total := s.userXP[tx.UserID]
	total.UserID = tx.UserID
	total.TotalXP += tx.Amount
	total.UpdatedAt = tx.CreatedAt
	s.userXP[tx.UserID] = total
}

// Credit appends a ledger entry outside of an answer, e.g. for seeding.
func (s *Store) Credit(_ context.Context, tx domain.XPTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creditLocked(tx)
	return nil
}

func (s *Store) Leaderboard(_ context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser := make(map[string]*domain.LeaderboardEntry)
	for _, tx := range s.xp {
		if !q.Since.IsZero() && tx.CreatedAt.Before(q.Since) {
			continue
		}
		if q.Category != "" && tx.Category != q.Category {
			continue
		}
		if q.Difficulty != "" && tx.Difficulty != q.Difficulty {
			continue
		}
		e, ok := byUser[tx.UserID]
		if !ok {
			e = &domain.LeaderboardEntry{UserID: tx.UserID}
			byUser[tx.UserID] = e
		}
		e.TotalPoints += tx.Amount
		if tx.CreatedAt.After(e.LastEarnedAt) {
			e.LastEarnedAt = tx.CreatedAt
		}
	}

	out := make([]domain.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		if !out[i].LastEarnedAt.Equal(out[j].LastEarnedAt) {
			return out[i].LastEarnedAt.Before(out[j].LastEarnedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) UserXP(_ context.Context, userID string) (domain.UserXP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if xp, ok := s.userXP[userID]; ok {
		return xp, nil
	}
	return domain.UserXP{UserID: userID}, nil
}

func (s *Store) ResetLeaderboard(_ context.Context) (domain.ResetSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := domain.ResetSummary{
		XPTransactions: int64(len(s.xp)),
		UserXPRows:     int64(len(s.userXP)),
	}
	s.xp = nil
	s.userXP = make(map[string]domain.UserXP)
	return summary, nil
}

func cloneChallenge(ch domain.Challenge) domain.Challenge {
	ch.Categories = append([]string(nil), ch.Categories...)
	ch.Difficulties = append([]domain.Difficulty(nil), ch.Difficulties...)
	ch.QuestionIDs = append([]string(nil), ch.QuestionIDs...)
	return ch
}
