package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the challenge service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChallengesCreated prometheus.Counter
	Transitions       *prometheus.CounterVec
	AnswersRecorded   *prometheus.CounterVec
	XPAwarded         prometheus.Counter
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChallengesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bleepy",
			Subsystem: "challenge",
			Name:      "created_total",
			Help:      "Total number of challenges created",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bleepy",
			Subsystem: "challenge",
			Name:      "transitions_total",
			Help:      "Challenge state transitions by target status",
		}, []string{"status"}),
		AnswersRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bleepy",
			Subsystem: "challenge",
			Name:      "answers_total",
			Help:      "Recorded answers by correctness",
		}, []string{"correct"}),
		XPAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bleepy",
			Subsystem: "challenge",
			Name:      "xp_awarded_total",
			Help:      "Total XP credited to the ledger",
		}),
		RequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bleepy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bleepy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) ChallengeCreated() {
	if m == nil {
		return
	}
	m.ChallengesCreated.Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) AnswerRecorded(correct bool, points int) {
	if m == nil {
		return
	}
	m.AnswersRecorded.WithLabelValues(strconv.FormatBool(correct)).Inc()
	if points > 0 {
		m.XPAwarded.Add(float64(points))
	}
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
