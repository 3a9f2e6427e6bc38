package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/infra/memory"
	"bleepy-challenge-service/internal/logger"
	"bleepy-challenge-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const testSecret = "test-secret"

type testEnv struct {
	router *gin.Engine
	bank   *memory.StaticQuestionBank
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	bank := memory.NewStaticQuestionBank(memory.SampleQuestionSet())
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := logger.Discard()
	svc := app.NewChallengeService(store, store, bank, memory.NewHubStore(), app.DefaultSettings(),
		app.WithLogger(log), app.WithMetrics(m))
	router := NewRouter(RouterConfig{
		Service:   svc,
		Log:       log,
		Metrics:   m,
		Gatherer:  reg,
		JWTSecret: testSecret,
	})
	return &testEnv{router: router, bank: bank}
}

func tokenFor(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// createReadyDuel creates a Cardiology/hard challenge with host and guest both ready.
func (e *testEnv) createReadyDuel(t *testing.T, host, guest string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/challenges", host, map[string]any{
		"categories":    []string{"Cardiology"},
		"difficulties":  []string{"hard"},
		"questionCount": 5,
	})
	expectStatus(t, rec, http.StatusCreated)
	code := decode[map[string]any](t, rec)["code"].(string)

	expectStatus(t, e.do(t, http.MethodPost, "/api/challenges/"+code+"/join", guest, nil), http.StatusCreated)
	expectStatus(t, e.do(t, http.MethodPost, "/api/challenges/"+code+"/ready", host, nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodPost, "/api/challenges/"+code+"/ready", guest, nil), http.StatusOK)
	return code
}
