package domain

import (
	"testing"
	"time"
)

func TestHasRecordedAnswer(t *testing.T) {
	answeredAt := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	correct := false
	selected := "B"

	placeholder := Answer{AnsweredAt: &answeredAt}
	if HasRecordedAnswer(placeholder) {
		t.Fatalf("placeholder with only answered_at must not count as recorded")
	}

	timeout := Answer{AnsweredAt: &answeredAt, IsCorrect: &correct}
	if !HasRecordedAnswer(timeout) {
		t.Fatalf("timeout with is_correct set must count as recorded")
	}

	unanswered := Answer{SelectedAnswer: &selected}
	if HasRecordedAnswer(unanswered) {
		t.Fatalf("answer without answered_at must not count as recorded")
	}
}

func TestChallengeStatusTransitions(t *testing.T) {
	if !StatusLobby.CanTransition(StatusActive) || !StatusActive.CanTransition(StatusCompleted) {
		t.Fatalf("expected forward transitions to be allowed")
	}
	for _, next := range []ChallengeStatus{StatusLobby, StatusActive, StatusCompleted} {
		if StatusCompleted.CanTransition(next) {
			t.Fatalf("completed must be terminal, allowed -> %s", next)
		}
	}
	if StatusActive.CanTransition(StatusLobby) || StatusLobby.CanTransition(StatusCompleted) {
		t.Fatalf("expected no reversal or skipping")
	}
}

func TestPeriodWindow(t *testing.T) {
	cases := map[Period]time.Duration{
		PeriodAllTime: 0,
		PeriodDaily:   24 * time.Hour,
		PeriodWeekly:  7 * 24 * time.Hour,
		PeriodMonthly: 30 * 24 * time.Hour,
	}
	for p, want := range cases {
		if got := p.Window(); got != want {
			t.Fatalf("%s: expected %s, got %s", p, want, got)
		}
	}
}
