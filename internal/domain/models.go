package domain

import "time"

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	StatusLobby     ChallengeStatus = "lobby"
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
)

// CanTransition reports whether the lifecycle allows moving from s to next.
// The lifecycle is linear: lobby -> active -> completed.
func (s ChallengeStatus) CanTransition(next ChallengeStatus) bool {
	switch s {
	case StatusLobby:
		return next == StatusActive
	case StatusActive:
		return next == StatusCompleted
	default:
		return false
	}
}

// ParticipantStatus tracks a participant through one challenge.
type ParticipantStatus string

const (
	ParticipantJoined   ParticipantStatus = "joined"
	ParticipantReady    ParticipantStatus = "ready"
	ParticipantPlaying  ParticipantStatus = "playing"
	ParticipantFinished ParticipantStatus = "finished"
)

// Difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Filters select the question pool of a challenge. Empty sets match everything.
type Filters struct {
	Categories    []string     `json:"categories"`
	Difficulties  []Difficulty `json:"difficulties" validate:"dive,oneof=easy medium hard"`
	QuestionCount int          `json:"questionCount" validate:"gte=1"`
}

// Challenge is a single multiplayer quiz session.
type Challenge struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	HostID        string          `json:"hostId"`
	Categories    []string        `json:"categories"`
	Difficulties  []Difficulty    `json:"difficulties"`
	QuestionCount int             `json:"questionCount"`
	QuestionIDs   []string        `json:"questionIds,omitempty"`
	Status        ChallengeStatus `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// HasQuestion reports whether questionID was sampled for this challenge.
func (c Challenge) HasQuestion(questionID string) bool {
	for _, id := range c.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Participant is a user's membership record within one challenge.
type Participant struct {
	ID          string            `json:"id"`
	ChallengeID string            `json:"challengeId"`
	UserID      string            `json:"userId"`
	Status      ParticipantStatus `json:"status"`
	JoinedAt    time.Time         `json:"joinedAt"`
	ReadyAt     *time.Time        `json:"readyAt,omitempty"`
}

// Answer is one participant's submission for one question. Rows are seeded as
// placeholders when a challenge starts, with only AnsweredAt defaulted.
type Answer struct {
	ID               string     `json:"id"`
	ChallengeID      string     `json:"challengeId"`
	ParticipantID    string     `json:"participantId"`
	QuestionID       string     `json:"questionId"`
	SelectedAnswer   *string    `json:"selectedAnswer"`
	TimeTakenSeconds *float64   `json:"timeTakenSeconds"`
	IsCorrect        *bool      `json:"isCorrect"`
	PointsEarned     *int       `json:"pointsEarned"`
	AnsweredAt       *time.Time `json:"answeredAt"`
}

// HasRecordedAnswer separates a genuine submission (possibly a timeout with no
// selection) from a seeded placeholder that only carries a defaulted AnsweredAt.
func HasRecordedAnswer(a Answer) bool {
	if a.AnsweredAt == nil {
		return false
	}
	return a.SelectedAnswer != nil || a.PointsEarned != nil || a.TimeTakenSeconds != nil || a.IsCorrect != nil
}

// AnswerSubmission is the input of a single answer.
type AnswerSubmission struct {
	ParticipantID    string
	UserID           string // submitting user; checked against the participant when set
	QuestionID       string
	SelectedAnswer   *string // nil denotes a timeout
	TimeTakenSeconds float64
}

// AnswerResult summarizes the outcome of a recorded answer.
type AnswerResult struct {
	AnswerID        string          `json:"answerId"`
	QuestionID      string          `json:"questionId"`
	IsCorrect       bool            `json:"isCorrect"`
	PointsEarned    int             `json:"pointsEarned"`
	Breakdown       ScoreBreakdown  `json:"breakdown"`
	Streak          int             `json:"streak"`
	ChallengeStatus ChallengeStatus `json:"challengeStatus"`
}

// ScoreBreakdown is the output shape of the scoring engine.
type ScoreBreakdown struct {
	BasePoints           int     `json:"basePoints"`
	SpeedBonus           int     `json:"speedBonus"`
	DifficultyMultiplier float64 `json:"difficultyMultiplier"`
	StreakMultiplier     float64 `json:"streakMultiplier"`
	TotalPoints          int     `json:"totalPoints"`
	Timing               string  `json:"timing"`
}

// Question is the slice of question-bank content the core needs.
type Question struct {
	ID            string     `json:"id" yaml:"id"`
	Category      string     `json:"category" yaml:"category"`
	Difficulty    Difficulty `json:"difficulty" yaml:"difficulty"`
	CorrectAnswer string     `json:"correctAnswer" yaml:"correct_answer"`
}

// XPTransaction is an append-only ledger entry crediting or debiting a user.
type XPTransaction struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Amount     int            `json:"amount"`
	Reason     string         `json:"reason"`
	SourceType string         `json:"sourceType"`
	SourceID   string         `json:"sourceId"`
	Category   string         `json:"category,omitempty"`
	Difficulty Difficulty     `json:"difficulty,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// UserXP is the denormalized per-user total of the ledger.
type UserXP struct {
	UserID    string    `json:"userId"`
	TotalXP   int       `json:"totalXp"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Period is a leaderboard time window.
type Period string

const (
	PeriodAllTime Period = "all_time"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Window returns the rolling length of the period; zero means unbounded.
func (p Period) Window() time.Duration {
	switch p {
	case PeriodDaily:
		return 24 * time.Hour
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// LeaderboardQuery selects the ledger slice to rank.
type LeaderboardQuery struct {
	Period     Period     `json:"period" validate:"oneof=all_time daily weekly monthly"`
	Category   string     `json:"category,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Limit      int        `json:"limit" validate:"gte=1,lte=100"`
	Since      time.Time  `json:"-"` // derived from Period by the service
}

// LeaderboardEntry is an aggregated ledger row, ordered by the store.
type LeaderboardEntry struct {
	UserID       string    `json:"userId"`
	TotalPoints  int       `json:"totalPoints"`
	LastEarnedAt time.Time `json:"lastEarnedAt"`
}

// RankedEntry is a leaderboard row with its 1-based position.
type RankedEntry struct {
	UserID      string `json:"userId"`
	TotalPoints int    `json:"totalPoints"`
	Rank        int    `json:"rank"`
}

// ResetSummary reports what a leaderboard reset removed.
type ResetSummary struct {
	XPTransactions int64 `json:"xpTransactions"`
	UserXPRows     int64 `json:"userXpRows"`
	Snapshots      int64 `json:"snapshots"`
}

// Identity is the caller as supplied by the session provider.
type Identity struct {
	UserID string
	Role   string
}

// ParticipantView is a participant with its progress in the challenge.
type ParticipantView struct {
	Participant
	Answered    int `json:"answered"`
	TotalPoints int `json:"totalPoints"`
}

// ChallengeView is the snapshot pushed to subscribers and returned by reads.
type ChallengeView struct {
	Challenge    Challenge         `json:"challenge"`
	Participants []ParticipantView `json:"participants"`
	Live         bool              `json:"live"` // someone has the challenge stream open
	UpdatedAt    time.Time         `json:"updatedAt"`
}
