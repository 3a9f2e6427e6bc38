package app

import (
	"context"
	"strings"

	"bleepy-challenge-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// CreateChallenge opens a lobby and adds the host as its first participant.
func (s *ChallengeService) CreateChallenge(ctx context.Context, hostID string, filters domain.Filters) (domain.Challenge, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return domain.Challenge{}, domain.Invalid("host id is required")
	}
	filters, err := s.normalizeFilters(filters)
	if err != nil {
		return domain.Challenge{}, err
	}

	now := s.now()
	ch := domain.Challenge{
		ID:            s.newID(),
		HostID:        hostID,
		Categories:    filters.Categories,
		Difficulties:  filters.Difficulties,
		QuestionCount: filters.QuestionCount,
		Status:        domain.StatusLobby,
		CreatedAt:     now,
	}
	host := domain.Participant{
		ID:          s.newID(),
		ChallengeID: ch.ID,
		UserID:      hostID,
		Status:      domain.ParticipantJoined,
		JoinedAt:    now,
	}

	code, err := s.codes.Acquire(ctx, func(code string) error {
		ch.Code = code
		return retryOnce(ctx, func() error {
			return s.store.CreateChallenge(ctx, ch, host)
		})
	})
	if err != nil {
		s.log.WithError(err).WithField("host_id", hostID).Error("create challenge")
		return domain.Challenge{}, err
	}
	ch.Code = code

	s.metrics.ChallengeCreated()
	s.logFor(ch).WithFields(logrus.Fields{
		"host_id":        hostID,
		"question_count": ch.QuestionCount,
	}).Info("challenge created")
	return ch, nil
}

func (s *ChallengeService) normalizeFilters(f domain.Filters) (domain.Filters, error) {
	if err := s.validate.Struct(f); err != nil {
		return domain.Filters{}, validationError(err)
	}
	if s.settings.MaxQuestions > 0 && f.QuestionCount > s.settings.MaxQuestions {
		return domain.Filters{}, domain.Invalid("questionCount must be at most %d", s.settings.MaxQuestions)
	}

	out := domain.Filters{QuestionCount: f.QuestionCount}
	seen := make(map[string]struct{}, len(f.Categories))
	for _, c := range f.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out.Categories = append(out.Categories, c)
	}
	seenDiff := make(map[domain.Difficulty]struct{}, len(f.Difficulties))
	for _, d := range f.Difficulties {
		if _, dup := seenDiff[d]; dup {
			continue
		}
		seenDiff[d] = struct{}{}
		out.Difficulties = append(out.Difficulties, d)
	}
	return out, nil
}

// JoinChallenge adds userID to the lobby identified by code.
func (s *ChallengeService) JoinChallenge(ctx context.Context, code, userID string) (domain.Participant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Participant{}, domain.Invalid("user id is required")
	}
	if err := s.validateCode(code); err != nil {
		return domain.Participant{}, err
	}

	unlock := s.locks.Lock(code)
	defer unlock()

	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return domain.Participant{}, err
	}
	if ch.Status != domain.StatusLobby {
		return domain.Participant{}, domain.ErrChallengeNotJoinable
	}

	p := domain.Participant{
		ID:          s.newID(),
		ChallengeID: ch.ID,
		UserID:      userID,
		Status:      domain.ParticipantJoined,
		JoinedAt:    s.now(),
	}
	err = retryOnce(ctx, func() error {
		return s.store.AddParticipant(ctx, p, s.settings.MaxParticipants)
	})
	if err != nil {
		return domain.Participant{}, err
	}

	s.logFor(ch).WithField("user_id", userID).Info("participant joined")
	s.publish(ctx, code)
	return p, nil
}

// MarkReady flags the caller's participant as ready. Repeated calls are no-ops.
func (s *ChallengeService) MarkReady(ctx context.Context, code, userID string) (domain.Participant, error) {
	if err := s.validateCode(code); err != nil {
		return domain.Participant{}, err
	}

	unlock := s.locks.Lock(code)
	defer unlock()

	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return domain.Participant{}, err
	}
	if err := requireLobby(ch); err != nil {
		return domain.Participant{}, err
	}

	participants, err := s.participants(ctx, ch.ID)
	if err != nil {
		return domain.Participant{}, err
	}
	p, ok := findParticipantByUser(participants, userID)
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if p.Status == domain.ParticipantReady {
		return p, nil
	}

	now := s.now()
	p.Status = domain.ParticipantReady
	if p.ReadyAt == nil {
		p.ReadyAt = &now
	}
	if err := retryOnce(ctx, func() error { return s.store.UpdateParticipant(ctx, p) }); err != nil {
		return domain.Participant{}, err
	}

	s.logFor(ch).WithField("user_id", userID).Debug("participant ready")
	s.publish(ctx, code)
	return p, nil
}

// RemoveParticipant lets the host drop a participant along with their answers.
func (s *ChallengeService) RemoveParticipant(ctx context.Context, code, participantID, requesterID string) error {
	if err := s.validateCode(code); err != nil {
		return err
	}

	unlock := s.locks.Lock(code)
	defer unlock()

	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return err
	}
	if ch.Status == domain.StatusCompleted {
		return domain.ErrChallengeCompleted
	}
	if requesterID != ch.HostID {
		return domain.ErrNotHost
	}

	participants, err := s.participants(ctx, ch.ID)
	if err != nil {
		return err
	}
	target, ok := findParticipant(participants, participantID)
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if target.UserID == ch.HostID {
		return domain.ErrHostCannotLeave
	}

	if err := retryOnce(ctx, func() error {
		return s.store.RemoveParticipant(ctx, ch.ID, participantID)
	}); err != nil {
		return err
	}
	s.logFor(ch).WithFields(logrus.Fields{
		"participant_id": participantID,
		"user_id":        target.UserID,
	}).Info("participant removed")

	if ch.Status == domain.StatusActive {
		if _, err := s.completeIfFinished(ctx, ch); err != nil {
			return err
		}
	}
	s.publish(ctx, code)
	return nil
}

func requireLobby(ch domain.Challenge) error {
	switch ch.Status {
	case domain.StatusLobby:
		return nil
	case domain.StatusCompleted:
		return domain.ErrChallengeCompleted
	default:
		return domain.ErrChallengeNotInLobby
	}
}
