package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bleepy-challenge-service/internal/domain"
)

var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func seedLobby(t *testing.T, s *Store) domain.Challenge {
	t.Helper()
	ch := domain.Challenge{ID: "ch-1", Code: "123456", HostID: "host", QuestionCount: 2, Status: domain.StatusLobby, CreatedAt: t0}
	host := domain.Participant{ID: "p-host", ChallengeID: ch.ID, UserID: "host", Status: domain.ParticipantJoined, JoinedAt: t0}
	if err := s.CreateChallenge(context.Background(), ch, host); err != nil {
		t.Fatalf("create: %v", err)
	}
	return ch
}

func TestCreateChallengeRejectsDuplicateCode(t *testing.T) {
	s := NewStore()
	seedLobby(t, s)

	dup := domain.Challenge{ID: "ch-2", Code: "123456", Status: domain.StatusLobby}
	err := s.CreateChallenge(context.Background(), dup, domain.Participant{ID: "p2", ChallengeID: "ch-2", UserID: "u"})
	if !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}
}

func TestAddParticipantEnforcesLimitAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ch := seedLobby(t, s)

	if err := s.AddParticipant(ctx, domain.Participant{ID: "p1", ChallengeID: ch.ID, UserID: "host"}, 8); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected already joined, got %v", err)
	}
	if err := s.AddParticipant(ctx, domain.Participant{ID: "p2", ChallengeID: ch.ID, UserID: "u2"}, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddParticipant(ctx, domain.Participant{ID: "p3", ChallengeID: ch.ID, UserID: "u3"}, 2); !errors.Is(err, domain.ErrChallengeFull) {
		t.Fatalf("expected full, got %v", err)
	}
	parts, _ := s.Participants(ctx, ch.ID)
	if len(parts) != 2 {
		t.Fatalf("failed join left a row behind: %d participants", len(parts))
	}
}

func TestConcurrentJoinsNeverExceedLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ch := seedLobby(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.Participant{ID: string(rune('a' + i)), ChallengeID: ch.ID, UserID: string(rune('A' + i))}
			_ = s.AddParticipant(ctx, p, 8)
		}(i)
	}
	wg.Wait()

	parts, _ := s.Participants(ctx, ch.ID)
	if len(parts) != 8 {
		t.Fatalf("expected exactly 8 participants, got %d", len(parts))
	}
}

func TestActivateIsConditionalOnLobby(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ch := seedLobby(t, s)

	ch.Status = domain.StatusActive
	ch.QuestionIDs = []string{"q1"}
	ch.StartedAt = &t0
	seed := []domain.Answer{{ID: "a1", ChallengeID: ch.ID, ParticipantID: "p-host", QuestionID: "q1", AnsweredAt: &t0}}
	if err := s.ActivateChallenge(ctx, ch, seed); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := s.ActivateChallenge(ctx, ch, nil); !errors.Is(err, domain.ErrStaleChallengeState) {
		t.Fatalf("expected stale state on second activate, got %v", err)
	}

	parts, _ := s.Participants(ctx, ch.ID)
	if parts[0].Status != domain.ParticipantPlaying {
		t.Fatalf("expected playing, got %s", parts[0].Status)
	}
	if err := s.AddParticipant(ctx, domain.Participant{ID: "late", ChallengeID: ch.ID, UserID: "late"}, 8); !errors.Is(err, domain.ErrChallengeNotJoinable) {
		t.Fatalf("expected not joinable, got %v", err)
	}
}

func TestRecordAnswerCreditsLedgerOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ch := seedLobby(t, s)
	ch.Status = domain.StatusActive
	ch.QuestionIDs = []string{"q1"}
	if err := s.ActivateChallenge(ctx, ch, []domain.Answer{{ID: "a1", ChallengeID: ch.ID, ParticipantID: "p-host", QuestionID: "q1", AnsweredAt: &t0}}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	sel, correct, points, taken := "x", true, 160, 4.0
	answer := domain.Answer{ID: "a1", ChallengeID: ch.ID, ParticipantID: "p-host", QuestionID: "q1",
		SelectedAnswer: &sel, IsCorrect: &correct, PointsEarned: &points, TimeTakenSeconds: &taken, AnsweredAt: &t0}
	xp := &domain.XPTransaction{ID: "x1", UserID: "host", Amount: points, CreatedAt: t0, Category: "Cardiology", Difficulty: domain.DifficultyHard}

	if err := s.RecordAnswer(ctx, answer, xp); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordAnswer(ctx, answer, xp); !errors.Is(err, domain.ErrAnswerAlreadyRecorded) {
		t.Fatalf("expected already recorded, got %v", err)
	}

	total, _ := s.UserXP(ctx, "host")
	if total.TotalXP != 160 {
		t.Fatalf("expected 160 xp, got %d", total.TotalXP)
	}
	board, _ := s.Leaderboard(ctx, domain.LeaderboardQuery{Limit: 10})
	if len(board) != 1 || board[0].TotalPoints != 160 {
		t.Fatalf("unexpected board %+v", board)
	}
}

func TestRemoveParticipantDropsAnswers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ch := seedLobby(t, s)
	_ = s.AddParticipant(ctx, domain.Participant{ID: "p2", ChallengeID: ch.ID, UserID: "u2"}, 8)
	ch.Status = domain.StatusActive
	ch.QuestionIDs = []string{"q1"}
	_ = s.ActivateChallenge(ctx, ch, []domain.Answer{
		{ID: "a1", ChallengeID: ch.ID, ParticipantID: "p-host", QuestionID: "q1", AnsweredAt: &t0},
		{ID: "a2", ChallengeID: ch.ID, ParticipantID: "p2", QuestionID: "q1", AnsweredAt: &t0},
	})

	if err := s.RemoveParticipant(ctx, ch.ID, "p2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	answers, _ := s.Answers(ctx, ch.ID)
	if len(answers) != 1 || answers[0].ParticipantID != "p-host" {
		t.Fatalf("expected only host answers, got %+v", answers)
	}
	if err := s.RemoveParticipant(ctx, ch.ID, "p2"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLeaderboardFiltersAndTieBreak(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Credit(ctx, domain.XPTransaction{UserID: "late", Amount: 100, Category: "Cardiology", CreatedAt: t0.Add(time.Minute)})
	_ = s.Credit(ctx, domain.XPTransaction{UserID: "early", Amount: 100, Category: "Cardiology", CreatedAt: t0})
	_ = s.Credit(ctx, domain.XPTransaction{UserID: "old", Amount: 500, Category: "Neurology", CreatedAt: t0.Add(-48 * time.Hour)})

	board, _ := s.Leaderboard(ctx, domain.LeaderboardQuery{Limit: 10})
	if board[0].UserID != "old" || board[1].UserID != "early" || board[2].UserID != "late" {
		t.Fatalf("unexpected all-time order %+v", board)
	}

	board, _ = s.Leaderboard(ctx, domain.LeaderboardQuery{Limit: 10, Since: t0.Add(-24 * time.Hour)})
	if len(board) != 2 {
		t.Fatalf("expected window to exclude old entries, got %+v", board)
	}

	board, _ = s.Leaderboard(ctx, domain.LeaderboardQuery{Limit: 10, Category: "Neurology"})
	if len(board) != 1 || board[0].UserID != "old" {
		t.Fatalf("expected category filter, got %+v", board)
	}
}

func TestResetLeaderboardCounts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Credit(ctx, domain.XPTransaction{UserID: "a", Amount: 10, CreatedAt: t0})
	_ = s.Credit(ctx, domain.XPTransaction{UserID: "a", Amount: 10, CreatedAt: t0})
	_ = s.Credit(ctx, domain.XPTransaction{UserID: "b", Amount: 10, CreatedAt: t0})

	summary, err := s.ResetLeaderboard(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if summary.XPTransactions != 3 || summary.UserXPRows != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	board, _ := s.Leaderboard(ctx, domain.LeaderboardQuery{Limit: 10})
	if len(board) != 0 {
		t.Fatalf("expected empty board after reset, got %+v", board)
	}
}
