package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quizplay"

// Metrics holds the play service collectors.
type Metrics struct {
	SessionsStarted  *prometheus.CounterVec
	SessionsFinished *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	Answers          *prometheus.CounterVec
	ScorePercentage  prometheus.Histogram
	SinkFailures     *prometheus.CounterVec
	WSConnections    prometheus.Gauge
	QuizLoads        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Quiz sessions started, by timing mode.",
		}, []string{"mode"}),
		SessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Quiz sessions finished, by end reason.",
		}, []string{"mode", "end_reason"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently running on this instance.",
		}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Resolved questions, by trigger and correctness.",
		}, []string{"trigger", "correct"}),
		ScorePercentage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_percentage",
			Help:      "Percentage score of completed sessions.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_sink_failures_total",
			Help:      "Failed attempts to record a session result, by sink.",
		}, []string{"sink"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open WebSocket connections.",
		}),
		QuizLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_loads_total",
			Help:      "Quiz question loads, by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsStarted,
			m.SessionsFinished,
			m.ActiveSessions,
			m.Answers,
			m.ScorePercentage,
			m.SinkFailures,
			m.WSConnections,
			m.QuizLoads,
		)
	}
	return m
}
