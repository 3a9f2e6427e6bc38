package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bleepy-challenge-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// Store implements app.ChallengeStore and app.Ledger on Postgres through bun.
// Multi-row operations run in a single transaction.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateChallenge(ctx context.Context, ch domain.Challenge, host domain.Participant) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := newChallengeRow(ch)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrCodeTaken
			}
			return err
		}
		hostRow := newParticipantRow(host)
		_, err := tx.NewInsert().Model(&hostRow).Exec(ctx)
		return err
	})
	return wrap("create challenge", err)
}

func (s *Store) ChallengeByCode(ctx context.Context, code string) (domain.Challenge, error) {
	var row challengeRow
	err := s.db.NewSelect().Model(&row).Where("code = ?", code).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, wrap("load challenge", err)
	}
	return row.toDomain(), nil
}

func (s *Store) Participants(ctx context.Context, challengeID string) ([]domain.Participant, error) {
	var rows []participantRow
	err := s.db.NewSelect().Model(&rows).
		Where("challenge_id = ?", challengeID).
		Order("joined_at ASC", "id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("load participants", err)
	}
	out := make([]domain.Participant, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// AddParticipant locks the challenge row so concurrent joins count the same set.
func (s *Store) AddParticipant(ctx context.Context, p domain.Participant, limit int) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var ch challengeRow
		err := tx.NewSelect().Model(&ch).
			Column("id", "status").
			Where("id = ?", p.ChallengeID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrChallengeNotFound
		}
		if err != nil {
			return err
		}
		if domain.ChallengeStatus(ch.Status) != domain.StatusLobby {
			return domain.ErrChallengeNotJoinable
		}

		joined, err := tx.NewSelect().Model((*participantRow)(nil)).
			Where("challenge_id = ?", p.ChallengeID).
			Where("user_id = ?", p.UserID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if joined {
			return domain.ErrAlreadyJoined
		}
		count, err := tx.NewSelect().Model((*participantRow)(nil)).
			Where("challenge_id = ?", p.ChallengeID).
			Count(ctx)
		if err != nil {
			return err
		}
		if limit > 0 && count >= limit {
			return domain.ErrChallengeFull
		}

		row := newParticipantRow(p)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyJoined
			}
			return err
		}
		return nil
	})
	return wrap("add participant", err)
}

func (s *Store) UpdateParticipant(ctx context.Context, p domain.Participant) error {
	row := newParticipantRow(p)
	res, err := s.db.NewUpdate().Model(&row).
		Column("status", "ready_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return wrap("update participant", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) RemoveParticipant(ctx context.Context, challengeID, participantID string) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*answerRow)(nil)).
			Where("participant_id = ?", participantID).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*participantRow)(nil)).
			Where("id = ?", participantID).
			Where("challenge_id = ?", challengeID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrParticipantNotFound
		}
		return nil
	})
	return wrap("remove participant", err)
}

func (s *Store) ActivateChallenge(ctx context.Context, ch domain.Challenge, placeholders []domain.Answer) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*challengeRow)(nil)).
			Set("status = ?", string(domain.StatusActive)).
			Set("question_ids = ?", pgdialect.Array(nonNil(ch.QuestionIDs))).
			Set("started_at = ?", ch.StartedAt).
			Where("id = ?", ch.ID).
			Where("status = ?", string(domain.StatusLobby)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrStaleChallengeState
		}

		if _, err := tx.NewUpdate().Model((*participantRow)(nil)).
			Set("status = ?", string(domain.ParticipantPlaying)).
			Where("challenge_id = ?", ch.ID).
			Exec(ctx); err != nil {
			return err
		}

		if len(placeholders) == 0 {
			return nil
		}
		rows := make([]answerRow, len(placeholders))
		for i, a := range placeholders {
			rows[i] = newAnswerRow(a)
		}
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	return wrap("activate challenge", err)
}

func (s *Store) CompleteChallenge(ctx context.Context, challengeID string, at time.Time) (bool, error) {
	var done bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*challengeRow)(nil)).
			Set("status = ?", string(domain.StatusCompleted)).
			Set("completed_at = ?", at).
			Where("id = ?", challengeID).
			Where("status = ?", string(domain.StatusActive)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		done = true
		_, err = tx.NewUpdate().Model((*participantRow)(nil)).
			Set("status = ?", string(domain.ParticipantFinished)).
			Where("challenge_id = ?", challengeID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, wrap("complete challenge", err)
	}
	return done, nil
}

func (s *Store) Answers(ctx context.Context, challengeID string) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("challenge_id = ?", challengeID).
		Order("answered_at ASC", "id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("load answers", err)
	}
	out := make([]domain.Answer, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

const upsertUserXP = `INSERT INTO user_xp (user_id, total_xp, updated_at) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET total_xp = user_xp.total_xp + EXCLUDED.total_xp, updated_at = EXCLUDED.updated_at`

// RecordAnswer fills the placeholder only while it is still unrecorded, so a
// racing duplicate updates zero rows.
func (s *Store) RecordAnswer(ctx context.Context, answer domain.Answer, xp *domain.XPTransaction) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*answerRow)(nil)).
			Set("selected_answer = ?", answer.SelectedAnswer).
			Set("time_taken_seconds = ?", answer.TimeTakenSeconds).
			Set("is_correct = ?", answer.IsCorrect).
			Set("points_earned = ?", answer.PointsEarned).
			Set("answered_at = ?", answer.AnsweredAt).
			Where("participant_id = ?", answer.ParticipantID).
			Where("question_id = ?", answer.QuestionID).
			Where("selected_answer IS NULL").
			Where("time_taken_seconds IS NULL").
			Where("is_correct IS NULL").
			Where("points_earned IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			exists, err := tx.NewSelect().Model((*answerRow)(nil)).
				Where("participant_id = ?", answer.ParticipantID).
				Where("question_id = ?", answer.QuestionID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrQuestionNotInChallenge
			}
			return domain.ErrAnswerAlreadyRecorded
		}

		if xp == nil {
			return nil
		}
		row := newXPTransactionRow(*xp)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, upsertUserXP, xp.UserID, xp.Amount, xp.CreatedAt)
		return err
	})
	return wrap("record answer", err)
}

func (s *Store) Leaderboard(ctx context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error) {
	query := s.db.NewSelect().
		TableExpr("xp_transactions AS xt").
		ColumnExpr("xt.user_id").
		ColumnExpr("SUM(xt.amount) AS total_points").
		ColumnExpr("MAX(xt.created_at) AS last_earned_at").
		GroupExpr("xt.user_id")
	if !q.Since.IsZero() {
		query = query.Where("xt.created_at >= ?", q.Since)
	}
	if q.Category != "" {
		query = query.Where("xt.category = ?", q.Category)
	}
	if q.Difficulty != "" {
		query = query.Where("xt.difficulty = ?", string(q.Difficulty))
	}
	query = query.
		OrderExpr("total_points DESC").
		OrderExpr("last_earned_at ASC").
		OrderExpr("xt.user_id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []leaderboardRow
	if err := query.Scan(ctx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("leaderboard", err)
	}
	out := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = domain.LeaderboardEntry{
			UserID:       r.UserID,
			TotalPoints:  r.TotalPoints,
			LastEarnedAt: r.LastEarnedAt,
		}
	}
	return out, nil
}

func (s *Store) UserXP(ctx context.Context, userID string) (domain.UserXP, error) {
	var row userXPRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserXP{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserXP{}, wrap("load user xp", err)
	}
	return domain.UserXP{UserID: row.UserID, TotalXP: row.TotalXP, UpdatedAt: row.UpdatedAt}, nil
}

func (s *Store) ResetLeaderboard(ctx context.Context) (domain.ResetSummary, error) {
	var summary domain.ResetSummary
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*xpTransactionRow)(nil)).Where("TRUE").Exec(ctx)
		if err != nil {
			return err
		}
		summary.XPTransactions, _ = res.RowsAffected()

		res, err = tx.NewDelete().Model((*userXPRow)(nil)).Where("TRUE").Exec(ctx)
		if err != nil {
			return err
		}
		summary.UserXPRows, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return domain.ResetSummary{}, wrap("reset leaderboard", err)
	}
	return summary, nil
}
