package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ChallengeCreated()
	m.Transition("active")
	m.AnswerRecorded(true, 160)
	m.AnswerRecorded(false, 0)
	m.ObserveRequest("/api/challenges", 201, 20*time.Millisecond)

	if got := testutil.ToFloat64(m.ChallengesCreated); got != 1 {
		t.Fatalf("expected 1 challenge, got %v", got)
	}
	if got := testutil.ToFloat64(m.XPAwarded); got != 160 {
		t.Fatalf("expected 160 xp, got %v", got)
	}
	if got := testutil.ToFloat64(m.AnswersRecorded.WithLabelValues("false")); got != 1 {
		t.Fatalf("expected 1 incorrect answer, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("/api/challenges", "201")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ChallengeCreated()
	m.Transition("completed")
	m.AnswerRecorded(true, 10)
	m.ObserveRequest("/", 200, time.Second)
}
