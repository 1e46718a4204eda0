package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK            = "ok"
	OutcomeBadRequest    = "bad_request"
	OutcomeBadMethod     = "method_not_allowed"
	OutcomeUpstreamError = "upstream_error"
)

// Metrics holds the relay collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry         *prometheus.Registry
	relayRequests    *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	activeWSSessions prometheus.Gauge
	droppedSubmits   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		relayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_requests_total",
			Help: "Relay requests by outcome",
		}, []string{"outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_upstream_latency_seconds",
			Help:    "Latency of completion API calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"provider", "success"}),
		activeWSSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_ws_sessions_active",
			Help: "Open chat session channels",
		}),
		droppedSubmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_ws_submits_dropped_total",
			Help: "Submissions ignored because a reply was still outstanding",
		}),
	}

	m.registry.MustRegister(
		m.relayRequests,
		m.upstreamLatency,
		m.activeWSSessions,
		m.droppedSubmits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRelay(outcome string) {
	m.relayRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUpstream(provider string, took time.Duration, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	m.upstreamLatency.WithLabelValues(provider, success).Observe(took.Seconds())
}

func (m *Metrics) SessionOpened() { m.activeWSSessions.Inc() }
func (m *Metrics) SessionClosed() { m.activeWSSessions.Dec() }
func (m *Metrics) SubmitDropped() { m.droppedSubmits.Inc() }
