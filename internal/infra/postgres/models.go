package postgres

import (
	"time"

	"bleepy-challenge-service/internal/domain"
	"github.com/uptrace/bun"
)

type challengeRow struct {
	bun.BaseModel `bun:"table:challenges,alias:c"`

	ID            string     `bun:"id,pk"`
	Code          string     `bun:"code,notnull"`
	HostID        string     `bun:"host_id,notnull"`
	Categories    []string   `bun:"categories,array"`
	Difficulties  []string   `bun:"difficulties,array"`
	QuestionCount int        `bun:"question_count,notnull"`
	QuestionIDs   []string   `bun:"question_ids,array"`
	Status        string     `bun:"status,notnull"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
	StartedAt     *time.Time `bun:"started_at"`
	CompletedAt   *time.Time `bun:"completed_at"`
}

type participantRow struct {
	bun.BaseModel `bun:"table:challenge_participants,alias:cp"`

	ID          string     `bun:"id,pk"`
	ChallengeID string     `bun:"challenge_id,notnull"`
	UserID      string     `bun:"user_id,notnull"`
	Status      string     `bun:"status,notnull"`
	JoinedAt    time.Time  `bun:"joined_at,notnull"`
	ReadyAt     *time.Time `bun:"ready_at"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:challenge_answers,alias:ca"`

	ID               string     `bun:"id,pk"`
	ChallengeID      string     `bun:"challenge_id,notnull"`
	ParticipantID    string     `bun:"participant_id,notnull"`
	QuestionID       string     `bun:"question_id,notnull"`
	SelectedAnswer   *string    `bun:"selected_answer"`
	TimeTakenSeconds *float64   `bun:"time_taken_seconds"`
	IsCorrect        *bool      `bun:"is_correct"`
	PointsEarned     *int       `bun:"points_earned"`
	AnsweredAt       *time.Time `bun:"answered_at"`
}

type xpTransactionRow struct {
	bun.BaseModel `bun:"table:xp_transactions,alias:xt"`

	ID         string         `bun:"id,pk"`
	UserID     string         `bun:"user_id,notnull"`
	Amount     int            `bun:"amount,notnull"`
	Reason     string         `bun:"reason,notnull"`
	SourceType string         `bun:"source_type,notnull"`
	SourceID   string         `bun:"source_id,notnull"`
	Category   string         `bun:"category,nullzero"`
	Difficulty string         `bun:"difficulty,nullzero"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,nullzero"`
	CreatedAt  time.Time      `bun:"created_at,notnull"`
}

type userXPRow struct {
	bun.BaseModel `bun:"table:user_xp,alias:ux"`

	UserID    string    `bun:"user_id,pk"`
	TotalXP   int       `bun:"total_xp,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type leaderboardRow struct {
	UserID       string    `bun:"user_id"`
	TotalPoints  int       `bun:"total_points"`
	LastEarnedAt time.Time `bun:"last_earned_at"`
}

func newChallengeRow(ch domain.Challenge) challengeRow {
	return challengeRow{
		ID:            ch.ID,
		Code:          ch.Code,
		HostID:        ch.HostID,
		Categories:    nonNil(ch.Categories),
		Difficulties:  nonNil(difficultyStrings(ch.Difficulties)),
		QuestionCount: ch.QuestionCount,
		QuestionIDs:   nonNil(ch.QuestionIDs),
		Status:        string(ch.Status),
		CreatedAt:     ch.CreatedAt,
		StartedAt:     ch.StartedAt,
		CompletedAt:   ch.CompletedAt,
	}
}

func (r challengeRow) toDomain() domain.Challenge {
	diffs := make([]domain.Difficulty, len(r.Difficulties))
	for i, d := range r.Difficulties {
		diffs[i] = domain.Difficulty(d)
	}
	return domain.Challenge{
		ID:            r.ID,
		Code:          r.Code,
		HostID:        r.HostID,
		Categories:    r.Categories,
		Difficulties:  diffs,
		QuestionCount: r.QuestionCount,
		QuestionIDs:   r.QuestionIDs,
		Status:        domain.ChallengeStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
	}
}

func newParticipantRow(p domain.Participant) participantRow {
	return participantRow{
		ID:          p.ID,
		ChallengeID: p.ChallengeID,
		UserID:      p.UserID,
		Status:      string(p.Status),
		JoinedAt:    p.JoinedAt,
		ReadyAt:     p.ReadyAt,
	}
}

func (r participantRow) toDomain() domain.Participant {
	return domain.Participant{
		ID:          r.ID,
		ChallengeID: r.ChallengeID,
		UserID:      r.UserID,
		Status:      domain.ParticipantStatus(r.Status),
		JoinedAt:    r.JoinedAt,
		ReadyAt:     r.ReadyAt,
	}
}

func newAnswerRow(a domain.Answer) answerRow {
	return answerRow{
		ID:               a.ID,
		ChallengeID:      a.ChallengeID,
		ParticipantID:    a.ParticipantID,
		QuestionID:       a.QuestionID,
		SelectedAnswer:   a.SelectedAnswer,
		TimeTakenSeconds: a.TimeTakenSeconds,
		IsCorrect:        a.IsCorrect,
		PointsEarned:     a.PointsEarned,
		AnsweredAt:       a.AnsweredAt,
	}
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:               r.ID,
		ChallengeID:      r.ChallengeID,
		ParticipantID:    r.ParticipantID,
		QuestionID:       r.QuestionID,
		SelectedAnswer:   r.SelectedAnswer,
		TimeTakenSeconds: r.TimeTakenSeconds,
		IsCorrect:        r.IsCorrect,
		PointsEarned:     r.PointsEarned,
		AnsweredAt:       r.AnsweredAt,
	}
}

func newXPTransactionRow(tx domain.XPTransaction) xpTransactionRow {
	return xpTransactionRow{
		ID:         tx.ID,
		UserID:     tx.UserID,
		Amount:     tx.Amount,
		Reason:     tx.Reason,
		SourceType: tx.SourceType,
		SourceID:   tx.SourceID,
		Category:   tx.Category,
		Difficulty: string(tx.Difficulty),
		Metadata:   tx.Metadata,
		CreatedAt:  tx.CreatedAt,
	}
}

func difficultyStrings(ds []domain.Difficulty) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}

// nonNil keeps array columns at '{}' instead of NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
