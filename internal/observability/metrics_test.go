package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveAttempt("click", nil)
	m.ObserveAttempt("click", errors.New("detached"))
	m.ObserveAttempt("click", errors.New("detached"))
	m.ObserveRetry("click")
	m.ObserveWaitTimeout("visible")
	m.ObserveAssertionFailure("text_contains")
	m.ObserveActionDuration("click", 150*time.Millisecond)
	m.ObserveHTTPRequest("/api/health", http.StatusOK)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("click", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("click", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("click")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.waitTimeouts.WithLabelValues("visible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assertionFailures.WithLabelValues("text_contains")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/health", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.actionDuration))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt("click", nil)
		m.ObserveRetry("click")
		m.ObserveWaitTimeout("visible")
		m.ObserveAssertionFailure("x")
		m.ObserveActionDuration("click", time.Second)
		m.ObserveHTTPRequest("/", 200)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRetry("login")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `pagekit_retries_total{operation="login"} 1`)
}
