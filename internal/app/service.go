package app

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"bleepy-challenge-service/internal/domain"
	"bleepy-challenge-service/internal/logger"
	"bleepy-challenge-service/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChallengeStore persists challenges, participants and answers. Multi-row
// operations must be atomic.
type ChallengeStore interface {
	// CreateChallenge inserts the challenge and its host participant, returning
	// domain.ErrCodeTaken when the code collides.
	CreateChallenge(ctx context.Context, ch domain.Challenge, host domain.Participant) error
	ChallengeByCode(ctx context.Context, code string) (domain.Challenge, error)
	Participants(ctx context.Context, challengeID string) ([]domain.Participant, error)
	// AddParticipant enforces lobby status, the (challenge, user) uniqueness and
	// the participant limit in one step.
	AddParticipant(ctx context.Context, p domain.Participant, limit int) error
	UpdateParticipant(ctx context.Context, p domain.Participant) error
	// RemoveParticipant deletes the participant's answers, then the participant.
	RemoveParticipant(ctx context.Context, challengeID, participantID string) error
	// ActivateChallenge moves lobby -> active, stores the sampled questions, marks
	// participants playing and seeds placeholder answers.
	ActivateChallenge(ctx context.Context, ch domain.Challenge, placeholders []domain.Answer) error
	// CompleteChallenge moves active -> completed; false means the challenge was not active.
	CompleteChallenge(ctx context.Context, challengeID string, at time.Time) (bool, error)
	Answers(ctx context.Context, challengeID string) ([]domain.Answer, error)
	// RecordAnswer fills a placeholder answer and appends xp (when non-nil) to
	// the ledger in one transaction.
	RecordAnswer(ctx context.Context, answer domain.Answer, xp *domain.XPTransaction) error
}

// Ledger aggregates XP transactions.
type Ledger interface {
	Leaderboard(ctx context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error)
	UserXP(ctx context.Context, userID string) (domain.UserXP, error)
	ResetLeaderboard(ctx context.Context) (domain.ResetSummary, error)
}

// QuestionBank is the read side of the external question bank.
type QuestionBank interface {
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	SampleQuestions(ctx context.Context, categories []string, difficulties []domain.Difficulty, count int) ([]string, error)
}

// LeaderboardCache stores computed leaderboards between ledger writes.
type LeaderboardCache interface {
	Leaderboard(ctx context.Context, q domain.LeaderboardQuery, load func(context.Context) ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error)
	Invalidate(ctx context.Context) error
	Purge(ctx context.Context) (int64, error)
}

// Settings are the tunable rules of a challenge.
type Settings struct {
	MaxParticipants int
	MaxQuestions    int
	CodeAttempts    int
	RequireAllReady bool
	ElevatedRoles   []string
}

func DefaultSettings() Settings {
	return Settings{
		MaxParticipants: 8,
		MaxQuestions:    50,
		CodeAttempts:    10,
		RequireAllReady: true,
		ElevatedRoles:   []string{"admin"},
	}
}

// withDefaults replaces non-positive limits and empty roles with the defaults.
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.MaxParticipants <= 0 {
		s.MaxParticipants = def.MaxParticipants
	}
	if s.MaxQuestions <= 0 {
		s.MaxQuestions = def.MaxQuestions
	}
	if s.CodeAttempts <= 0 {
		s.CodeAttempts = def.CodeAttempts
	}
	if len(s.ElevatedRoles) == 0 {
		s.ElevatedRoles = def.ElevatedRoles
	}
	return s
}

// ChallengeService contains the challenge use cases.
type ChallengeService struct {
	store     ChallengeStore
	ledger    Ledger
	questions QuestionBank
	hubs      HubRepository
	board     LeaderboardCache
	codes     *CodeGenerator
	locks     *keyedMutex
	settings  Settings
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
	log       *logrus.Entry
	metrics   *metrics.Metrics
}

// Option customizes a ChallengeService.
type Option func(*ChallengeService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ChallengeService) { s.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *ChallengeService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ChallengeService) { s.metrics = m }
}

func WithLeaderboardCache(c LeaderboardCache) Option {
	return func(s *ChallengeService) { s.board = c }
}

func WithCodeGenerator(g *CodeGenerator) Option {
	return func(s *ChallengeService) { s.codes = g }
}

func NewChallengeService(store ChallengeStore, ledger Ledger, questions QuestionBank, hubs HubRepository, settings Settings, opts ...Option) *ChallengeService {
	s := &ChallengeService{
		store:     store,
		ledger:    ledger,
		questions: questions,
		hubs:      hubs,
		locks:     newKeyedMutex(),
		settings:  settings.withDefaults(),
		validate:  newValidator(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codes == nil {
		s.codes = NewCodeGenerator(s.settings.CodeAttempts)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return domain.Invalid("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return domain.Invalid("%s must satisfy %s", fe.Field(), fe.Tag())
	}
	return domain.Invalid("%v", err)
}

func (s *ChallengeService) validateCode(code string) error {
	if err := s.validate.Var(code, "len=6,number"); err != nil {
		return domain.ErrInvalidCode
	}
	return nil
}

// challengeByCode assumes the code has been validated.
func (s *ChallengeService) challengeByCode(ctx context.Context, code string) (domain.Challenge, error) {
	var ch domain.Challenge
	err := retryOnce(ctx, func() error {
		var err error
		ch, err = s.store.ChallengeByCode(ctx, code)
		return err
	})
	return ch, err
}

func (s *ChallengeService) participants(ctx context.Context, challengeID string) ([]domain.Participant, error) {
	var out []domain.Participant
	err := retryOnce(ctx, func() error {
		var err error
		out, err = s.store.Participants(ctx, challengeID)
		return err
	})
	return out, err
}

func (s *ChallengeService) answers(ctx context.Context, challengeID string) ([]domain.Answer, error) {
	var out []domain.Answer
	err := retryOnce(ctx, func() error {
		var err error
		out, err = s.store.Answers(ctx, challengeID)
		return err
	})
	return out, err
}

func (s *ChallengeService) logFor(ch domain.Challenge) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"challenge_id": ch.ID,
		"code":         ch.Code,
	})
}

func findParticipantByUser(participants []domain.Participant, userID string) (domain.Participant, bool) {
	for _, p := range participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func findParticipant(participants []domain.Participant, participantID string) (domain.Participant, bool) {
	for _, p := range participants {
		if p.ID == participantID {
			return p, true
		}
	}
	return domain.Participant{}, false
}
