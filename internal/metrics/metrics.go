// Package metrics exposes Prometheus counters and histograms for scheduling.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conorfennell/skillcadence/internal/domain"
)

const namespace = "skillcadence"

// Session outcomes.
const (
	OutcomeScheduled   = "scheduled"
	OutcomeRejected    = "rejected"
	OutcomeOracleError = "oracle_error"
	OutcomeStoreError  = "store_error"
)

// Metrics holds the collectors on their own registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry        *prometheus.Registry
	sessions        *prometheus.CounterVec
	grades          *prometheus.CounterVec
	oracleLatency   *prometheus.HistogramVec
	quotaRejections prometheus.Counter
	remindersSent   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Practice log submissions by outcome",
		}, []string{"outcome"}),
		grades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grades_total",
			Help:      "Review grades assigned by the classifier",
		}, []string{"grade"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "request_duration_seconds",
			Help:      "Time spent waiting for log analysis",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
		quotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "rejections_total",
			Help:      "Submissions refused by the daily quota",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminder",
			Name:      "notifications_total",
			Help:      "Per-user due reminders delivered",
		}),
	}
	m.registry.MustRegister(
		m.sessions,
		m.grades,
		m.oracleLatency,
		m.quotaRejections,
		m.remindersSent,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Session(outcome string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Grade(g domain.Grade) {
	if m == nil {
		return
	}
	m.grades.WithLabelValues(g.String()).Inc()
}

// OracleCall records one analysis request that took d.
func (m *Metrics) OracleCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.oracleLatency.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) QuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejections.Inc()
}

func (m *Metrics) ReminderSent() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
