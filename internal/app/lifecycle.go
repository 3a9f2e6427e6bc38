package app

import (
	"context"

	"bleepy-challenge-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// StartChallenge samples the question set and moves the lobby to active.
func (s *ChallengeService) StartChallenge(ctx context.Context, code, requesterID string) (domain.Challenge, error) {
	if err := s.validateCode(code); err != nil {
		return domain.Challenge{}, err
	}

	unlock := s.locks.Lock(code)
	defer unlock()

	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return domain.Challenge{}, err
	}
	if err := requireLobby(ch); err != nil {
		return domain.Challenge{}, err
	}
	if requesterID != ch.HostID {
		return domain.Challenge{}, domain.ErrNotHost
	}

	participants, err := s.participants(ctx, ch.ID)
	if err != nil {
		return domain.Challenge{}, err
	}
	if s.settings.RequireAllReady {
		for _, p := range participants {
			if p.Status != domain.ParticipantReady {
				return domain.Challenge{}, domain.ErrParticipantsNotReady
			}
		}
	}

	var questionIDs []string
	err = retryOnce(ctx, func() error {
		var err error
		questionIDs, err = s.questions.SampleQuestions(ctx, ch.Categories, ch.Difficulties, ch.QuestionCount)
		return err
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	if len(questionIDs) == 0 {
		return domain.Challenge{}, domain.ErrNoQuestionsAvailable
	}
	if len(questionIDs) > ch.QuestionCount {
		questionIDs = questionIDs[:ch.QuestionCount]
	}
	log := s.logFor(ch)
	if len(questionIDs) < ch.QuestionCount {
		log.WithFields(logrus.Fields{
			"requested": ch.QuestionCount,
			"sampled":   len(questionIDs),
		}).Warn("question pool smaller than requested count")
	}

	now := s.now()
	ch.Status = domain.StatusActive
	ch.QuestionIDs = questionIDs
	ch.StartedAt = &now

	placeholders := make([]domain.Answer, 0, len(participants)*len(questionIDs))
	for _, p := range participants {
		for _, qid := range questionIDs {
			answeredAt := now
			placeholders = append(placeholders, domain.Answer{
				ID:            s.newID(),
				ChallengeID:   ch.ID,
				ParticipantID: p.ID,
				QuestionID:    qid,
				AnsweredAt:    &answeredAt,
			})
		}
	}

	if err := retryOnce(ctx, func() error {
		return s.store.ActivateChallenge(ctx, ch, placeholders)
	}); err != nil {
		return domain.Challenge{}, err
	}

	s.metrics.Transition(string(domain.StatusActive))
	log.WithFields(logrus.Fields{
		"participants": len(participants),
		"questions":    len(questionIDs),
	}).Info("challenge started")
	s.publish(ctx, code)
	return ch, nil
}

// EndChallenge force-completes an active challenge on behalf of the host.
// Ending a completed challenge returns it unchanged.
func (s *ChallengeService) EndChallenge(ctx context.Context, code, requesterID string) (domain.Challenge, error) {
	if err := s.validateCode(code); err != nil {
		return domain.Challenge{}, err
	}

	unlock := s.locks.Lock(code)
	defer unlock()

	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return domain.Challenge{}, err
	}
	if requesterID != ch.HostID {
		return domain.Challenge{}, domain.ErrNotHost
	}
	switch ch.Status {
	case domain.StatusCompleted:
		return ch, nil
	case domain.StatusLobby:
		return domain.Challenge{}, domain.ErrChallengeNotActive
	}

	done, err := s.complete(ctx, ch)
	if err != nil {
		return domain.Challenge{}, err
	}
	if !done {
		return s.reloadCompleted(ctx, code)
	}
	s.logFor(ch).WithField("forced", true).Info("challenge completed")
	s.publish(ctx, code)
	return s.challengeByCode(ctx, code)
}

// completeIfFinished completes an active challenge once every participant is finished.
func (s *ChallengeService) completeIfFinished(ctx context.Context, ch domain.Challenge) (bool, error) {
	participants, err := s.participants(ctx, ch.ID)
	if err != nil {
		return false, err
	}
	for _, p := range participants {
		if p.Status != domain.ParticipantFinished {
			return false, nil
		}
	}
	done, err := s.complete(ctx, ch)
	if err != nil {
		return false, err
	}
	if done {
		s.logFor(ch).WithField("forced", false).Info("challenge completed")
	}
	return done, nil
}

func (s *ChallengeService) complete(ctx context.Context, ch domain.Challenge) (bool, error) {
	var done bool
	err := retryOnce(ctx, func() error {
		var err error
		done, err = s.store.CompleteChallenge(ctx, ch.ID, s.now())
		return err
	})
	if err != nil {
		return false, err
	}
	if done {
		s.metrics.Transition(string(domain.StatusCompleted))
	}
	return done, nil
}

// reloadCompleted resolves a lost completion race: another writer finishing
// the challenge is fine, anything else is stale state.
func (s *ChallengeService) reloadCompleted(ctx context.Context, code string) (domain.Challenge, error) {
	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return domain.Challenge{}, err
	}
	if ch.Status != domain.StatusCompleted {
		return domain.Challenge{}, domain.ErrStaleChallengeState
	}
	return ch, nil
}
