package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"bleepy-challenge-service/internal/domain"
)

func TestRESTChallengeFlow(t *testing.T) {
	env := newTestEnv(t)
	host := tokenFor(t, "host", "student")
	guest := tokenFor(t, "guest", "student")

	code := env.createReadyDuel(t, host, guest)

	rec := env.do(t, http.MethodPost, "/api/challenges/"+code+"/start", host, nil)
	expectStatus(t, rec, http.StatusOK)
	started := decode[domain.Challenge](t, rec)
	if started.Status != domain.StatusActive || len(started.QuestionIDs) != 5 {
		t.Fatalf("unexpected started challenge %+v", started)
	}

	rec = env.do(t, http.MethodGet, "/api/challenges/"+code, host, nil)
	expectStatus(t, rec, http.StatusOK)
	view := decode[domain.ChallengeView](t, rec)
	var hostPID string
	for _, p := range view.Participants {
		if p.UserID == "host" {
			hostPID = p.ID
		}
	}

	qid := started.QuestionIDs[0]
	q, _ := env.bank.GetQuestion(context.Background(), qid)
	rec = env.do(t, http.MethodPost, "/api/challenges/"+code+"/answers", host, map[string]any{
		"participantId":    hostPID,
		"questionId":       qid,
		"selectedAnswer":   q.CorrectAnswer,
		"timeTakenSeconds": 4.5,
	})
	expectStatus(t, rec, http.StatusOK)
	result := decode[domain.AnswerResult](t, rec)
	if !result.IsCorrect || result.PointsEarned != 160 {
		t.Fatalf("unexpected answer result %+v", result)
	}

	rec = env.do(t, http.MethodPost, "/api/challenges/"+code+"/answers", guest, map[string]any{
		"participantId":    hostPID,
		"questionId":       started.QuestionIDs[1],
		"timeTakenSeconds": 1,
	})
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(t, http.MethodGet, "/api/leaderboard?period=all_time", "", nil)
	expectStatus(t, rec, http.StatusOK)
	board := decode[struct {
		Period  string               `json:"period"`
		Entries []domain.RankedEntry `json:"entries"`
	}](t, rec)
	if len(board.Entries) != 1 || board.Entries[0].UserID != "host" || board.Entries[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	rec = env.do(t, http.MethodGet, "/api/users/me/xp", host, nil)
	expectStatus(t, rec, http.StatusOK)
	if xp := decode[domain.UserXP](t, rec); xp.TotalXP != 160 {
		t.Fatalf("expected 160 xp, got %+v", xp)
	}

	rec = env.do(t, http.MethodPost, "/api/challenges/"+code+"/end", host, nil)
	expectStatus(t, rec, http.StatusOK)
	if ended := decode[domain.Challenge](t, rec); ended.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", ended.Status)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	host := tokenFor(t, "host", "student")
	guest := tokenFor(t, "guest", "student")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"unknown code", http.MethodGet, "/api/challenges/999999", host, nil, http.StatusNotFound, "not_found"},
		{"malformed code", http.MethodGet, "/api/challenges/12x", host, nil, http.StatusBadRequest, "validation"},
		{"bad filters", http.MethodPost, "/api/challenges", host, map[string]any{"questionCount": 500}, http.StatusBadRequest, "validation"},
		{"missing body fields", http.MethodPost, "/api/challenges", host, map[string]any{}, http.StatusBadRequest, "validation"},
		{"bad limit", http.MethodGet, "/api/leaderboard?limit=abc", "", nil, http.StatusBadRequest, "validation"},
		{"bad period", http.MethodGet, "/api/leaderboard?period=yearly", "", nil, http.StatusBadRequest, "validation"},
		{"reset needs admin", http.MethodPost, "/api/leaderboard/reset", guest, nil, http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, tc.token, tc.body)
			expectStatus(t, rec, tc.status)
			body := decode[map[string]string](t, rec)
			if body["kind"] != tc.kind || body["error"] == "" {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}

	code := env.createReadyDuel(t, host, guest)
	rec := env.do(t, http.MethodPost, "/api/challenges/"+code+"/join", guest, nil)
	expectStatus(t, rec, http.StatusConflict)
	rec = env.do(t, http.MethodPost, "/api/challenges/"+code+"/start", guest, nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = env.do(t, http.MethodDelete, "/api/challenges/"+code+"/participants/nobody", host, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/challenges", "", map[string]any{"questionCount": 5})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(t, http.MethodPost, "/api/challenges", "not-a-jwt", map[string]any{"questionCount": 5})
	expectStatus(t, rec, http.StatusUnauthorized)

	forged, err := IssueToken("other-secret", "host", "admin", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec = env.do(t, http.MethodPost, "/api/leaderboard/reset", forged, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestResetAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/leaderboard/reset", tokenFor(t, "root", "admin"), nil)
	expectStatus(t, rec, http.StatusOK)
	summary := decode[domain.ResetSummary](t, rec)
	if summary.XPTransactions != 0 {
		t.Fatalf("expected empty reset on fresh ledger, got %+v", summary)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
	_ = env.do(t, http.MethodGet, "/api/leaderboard", "", nil)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "bleepy_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}
