// File: internal/observability/metrics.go
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects interaction and mock-server counters. A nil *Metrics is
// valid and records nothing, so components can take one unconditionally.
type Metrics struct {
	registry *prometheus.Registry

	attempts          *prometheus.CounterVec
	retries           *prometheus.CounterVec
	waitTimeouts      *prometheus.CounterVec
	assertionFailures *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
}

// NewMetrics registers the pagekit collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagekit_action_attempts_total",
				Help: "Driver action attempts by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagekit_retries_total",
				Help: "Retries scheduled after a failed attempt.",
			},
			[]string{"operation"},
		),
		waitTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagekit_wait_timeouts_total",
				Help: "Element and page waits that ran out of time.",
			},
			[]string{"condition"},
		),
		assertionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagekit_assertion_failures_total",
				Help: "Failed page assertions.",
			},
			[]string{"assertion"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagekit_action_duration_seconds",
				Help:    "Duration of page actions including retries.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagekit_mock_http_requests_total",
				Help: "Requests served by the mock application server.",
			},
			[]string{"route", "code"},
		),
	}
	m.registry.MustRegister(
		m.attempts,
		m.retries,
		m.waitTimeouts,
		m.assertionFailures,
		m.actionDuration,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAttempt(action string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.attempts.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveWaitTimeout(condition string) {
	if m == nil {
		return
	}
	m.waitTimeouts.WithLabelValues(condition).Inc()
}

func (m *Metrics) ObserveAssertionFailure(assertion string) {
	if m == nil {
		return
	}
	m.assertionFailures.WithLabelValues(assertion).Inc()
}

func (m *Metrics) ObserveActionDuration(action string, d time.Duration) {
	if m == nil {
		return
	}
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
