// Package metrics holds the Prometheus collectors of the lounge.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snake"

// Metrics groups every collector. Create it once per registry.
type Metrics struct {
	Signups          prometheus.Counter
	Logins           *prometheus.CounterVec
	ScoreSubmissions *prometheus.CounterVec
	SessionsStarted  *prometheus.CounterVec
	SessionsEnded    prometheus.Counter
	SessionsSwept    prometheus.Counter
	SnapshotUpdates  prometheus.Counter
	KafkaEvents      *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers all collectors with reg
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Accounts created.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		ScoreSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_submissions_total",
			Help:      "Leaderboard entries submitted by mode.",
		}, []string{"mode"}),
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Active sessions created by mode.",
		}, []string{"mode"}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Active sessions deleted by their game.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Active sessions removed for inactivity.",
		}),
		SnapshotUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_updates_total",
			Help:      "Game state snapshots applied.",
		}),
		KafkaEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_events_total",
			Help:      "Consumed events by type and result.",
		}, []string{"type", "result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Signups,
		m.Logins,
		m.ScoreSubmissions,
		m.SessionsStarted,
		m.SessionsEnded,
		m.SessionsSwept,
		m.SnapshotUpdates,
		m.KafkaEvents,
		m.HTTPDuration,
	)
	return m
}

// NewNop returns collectors registered to a private registry, for tests
// and tools that do not expose metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware observes request latency labelled by the matched chi route
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
