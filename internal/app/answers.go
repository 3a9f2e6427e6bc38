package app

import (
	"context"
	"math"
	"sort"
	"strings"

	"bleepy-challenge-service/internal/domain"
	"bleepy-challenge-service/internal/scoring"
	"github.com/sirupsen/logrus"
)

const (
	xpReasonChallengeAnswer = "challenge_answer"
	xpSourceChallenge       = "challenge"
)

// SubmitAnswer scores one answer and records it together with its XP credit.
func (s *ChallengeService) SubmitAnswer(ctx context.Context, code string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if err := s.validateCode(code); err != nil {
		return domain.AnswerResult{}, err
	}
	if sub.ParticipantID == "" || sub.QuestionID == "" {
		return domain.AnswerResult{}, domain.Invalid("participantId and questionId are required")
	}
	if math.IsNaN(sub.TimeTakenSeconds) || math.IsInf(sub.TimeTakenSeconds, 0) || sub.TimeTakenSeconds < 0 {
		return domain.AnswerResult{}, domain.Invalid("timeTakenSeconds must be a non-negative number")
	}
	selected := normalizeSelection(sub.SelectedAnswer)

	unlock := s.locks.Lock(code)
	defer unlock()

	ch, err := s.challengeByCode(ctx, code)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	switch ch.Status {
	case domain.StatusLobby:
		return domain.AnswerResult{}, domain.ErrChallengeNotActive
	case domain.StatusCompleted:
		return domain.AnswerResult{}, domain.ErrChallengeCompleted
	}
	if !ch.HasQuestion(sub.QuestionID) {
		return domain.AnswerResult{}, domain.ErrQuestionNotInChallenge
	}

	participants, err := s.participants(ctx, ch.ID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	p, ok := findParticipant(participants, sub.ParticipantID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}
	if sub.UserID != "" && p.UserID != sub.UserID {
		return domain.AnswerResult{}, domain.ErrNotParticipant
	}

	all, err := s.answers(ctx, ch.ID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	var (
		slot     *domain.Answer
		recorded []domain.Answer
	)
	for i := range all {
		a := all[i]
		if a.ParticipantID != p.ID {
			continue
		}
		if a.QuestionID == sub.QuestionID {
			slot = &all[i]
		}
		if domain.HasRecordedAnswer(a) {
			recorded = append(recorded, a)
		}
	}
	if slot == nil {
		return domain.AnswerResult{}, domain.ErrQuestionNotInChallenge
	}
	if domain.HasRecordedAnswer(*slot) {
		return domain.AnswerResult{}, domain.ErrAnswerAlreadyRecorded
	}

	var question domain.Question
	err = retryOnce(ctx, func() error {
		var err error
		question, err = s.questions.GetQuestion(ctx, sub.QuestionID)
		return err
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}

	isCorrect := selected != nil && strings.EqualFold(*selected, strings.TrimSpace(question.CorrectAnswer))
	streak := currentStreak(recorded)
	breakdown := scoring.Score(isCorrect, sub.TimeTakenSeconds, question.Difficulty, streak)

	now := s.now()
	timeTaken := sub.TimeTakenSeconds
	points := breakdown.TotalPoints
	answer := *slot
	answer.SelectedAnswer = selected
	answer.TimeTakenSeconds = &timeTaken
	answer.IsCorrect = &isCorrect
	answer.PointsEarned = &points
	answer.AnsweredAt = &now

	var xp *domain.XPTransaction
	if points > 0 {
		xp = &domain.XPTransaction{
			ID:         s.newID(),
			UserID:     p.UserID,
			Amount:     points,
			Reason:     xpReasonChallengeAnswer,
			SourceType: xpSourceChallenge,
			SourceID:   ch.ID,
			Category:   question.Category,
			Difficulty: question.Difficulty,
			Metadata: map[string]any{
				"challenge_code":        ch.Code,
				"question_id":           question.ID,
				"difficulty_multiplier": breakdown.DifficultyMultiplier,
				"streak_multiplier":     breakdown.StreakMultiplier,
				"timing":                breakdown.Timing,
			},
			CreatedAt: now,
		}
	}

	if err := retryOnce(ctx, func() error {
		return s.store.RecordAnswer(ctx, answer, xp)
	}); err != nil {
		return domain.AnswerResult{}, err
	}
	s.metrics.AnswerRecorded(isCorrect, points)
	if xp != nil && s.board != nil {
		if err := s.board.Invalidate(ctx); err != nil {
			s.log.WithError(err).Warn("invalidate leaderboard cache")
		}
	}

	status := ch.Status
	if len(recorded)+1 >= len(ch.QuestionIDs) {
		p.Status = domain.ParticipantFinished
		if err := retryOnce(ctx, func() error { return s.store.UpdateParticipant(ctx, p) }); err != nil {
			return domain.AnswerResult{}, err
		}
		done, err := s.completeIfFinished(ctx, ch)
		if err != nil {
			return domain.AnswerResult{}, err
		}
		if done {
			status = domain.StatusCompleted
		}
	}

	s.logFor(ch).WithFields(logrus.Fields{
		"participant_id": p.ID,
		"question_id":    question.ID,
		"correct":        isCorrect,
		"points":         points,
	}).Debug("answer recorded")
	s.publish(ctx, code)

	return domain.AnswerResult{
		AnswerID:        answer.ID,
		QuestionID:      answer.QuestionID,
		IsCorrect:       isCorrect,
		PointsEarned:    points,
		Breakdown:       breakdown,
		Streak:          streak,
		ChallengeStatus: status,
	}, nil
}

// normalizeSelection maps a blank selection to nil, which scores as a timeout.
func normalizeSelection(selected *string) *string {
	if selected == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*selected)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// currentStreak counts the consecutive correct answers at the end of recorded.
func currentStreak(recorded []domain.Answer) int {
	sorted := make([]domain.Answer, len(recorded))
	copy(sorted, recorded)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AnsweredAt.Before(*sorted[j].AnsweredAt)
	})

	streak := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].IsCorrect == nil || !*sorted[i].IsCorrect {
			break
		}
		streak++
	}
	return streak
}
