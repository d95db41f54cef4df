// internal/fixtures/server_test.go
package fixtures

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/retry"
	"github.com/xkilldash9x/pagekit/internal/wait"
)

func startEnv(t *testing.T) *Environment {
	t.Helper()
	cfg := config.NewDefaultConfig()
	env, err := StartEnvironment(context.Background(), cfg, zaptest.NewLogger(t), WithPort(0))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, env.Close(ctx))
	})
	return env
}

func newBrowserClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &http.Client{Jar: jar, Timeout: 5 * time.Second}
	t.Cleanup(c.CloseIdleConnections)
	return c
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestServer_HealthAndBaseURL(t *testing.T) {
	env := startEnv(t)
	assert.True(t, strings.HasPrefix(env.BaseURL(), "http://127.0.0.1:"))

	h, err := env.Server.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "127.0.0.1", h.Host)
	assert.NotZero(t, h.Port)
}

type failingTransport struct{ calls int }

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestServer_StartHonorsHealthPolicy(t *testing.T) {
	clock := wait.NewFakeClock(time.Unix(0, 0))
	s := NewServer("127.0.0.1", 0, nil, zaptest.NewLogger(t),
		WithHealthPolicy(retry.Fixed(2, 750*time.Millisecond)),
		WithHealthRetry(retry.WithClock(clock)),
	)
	tr := &failingTransport{}
	s.client = &http.Client{Transport: tr}

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach healthy state")
	assert.Equal(t, 2, tr.calls)
	assert.Equal(t, []time.Duration{750 * time.Millisecond}, clock.Sleeps())
	_, err = s.HealthCheck(context.Background())
	assert.ErrorIs(t, err, ErrServerNotRunning, "a failed start leaves the server stopped")
}

func TestServer_BaseURLIsPlainHTTPOnAnyPort(t *testing.T) {
	s := NewServer("127.0.0.1", 0, nil, zaptest.NewLogger(t))
	for _, port := range []int{80, 443, 8443} {
		s.addr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
		assert.Equal(t, "http://127.0.0.1:"+strconv.Itoa(port), s.BaseURL())
	}
}

func TestServer_HealthCheckBeforeStart(t *testing.T) {
	s := NewServer("127.0.0.1", 0, nil, zaptest.NewLogger(t))
	h, err := s.HealthCheck(context.Background())
	assert.ErrorIs(t, err, ErrServerNotRunning)
	assert.Equal(t, "down", h.Status)
	assert.Empty(t, s.BaseURL())
	assert.NoError(t, s.Stop(context.Background()), "stopping an unstarted server is a no-op")
}

func TestServer_HTMLLoginFlow(t *testing.T) {
	env := startEnv(t)
	c := newBrowserClient(t)
	base := env.BaseURL()

	resp, err := c.Get(base + "/")
	require.NoError(t, err)
	page := body(t, resp)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, page, `data-testid="login-form"`)
	assert.Contains(t, page, `data-testid="login-button"`)

	resp, err = c.PostForm(base+"/login", url.Values{"email": {"user@example.com"}, "password": {"wrong"}})
	require.NoError(t, err)
	page = body(t, resp)
	assert.Contains(t, page, `class="error-message"`)
	assert.Contains(t, page, invalidLoginError)

	resp, err = c.PostForm(base+"/login", url.Values{
		"email":    {"user@example.com"},
		"password": {"hashed_password_123"},
		"remember": {"1"},
	})
	require.NoError(t, err)
	page = body(t, resp)
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	assert.Contains(t, page, "Welcome, testuser")
	assert.Contains(t, page, `<span data-testid="user-email">user@example.com</span>`)
	assert.Equal(t, 1, env.Server.Sessions())

	resp, err = c.PostForm(base+"/logout", nil)
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Zero(t, env.Server.Sessions())

	resp, err = c.Get(base + "/dashboard")
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, "/login", resp.Request.URL.Path, "dashboard requires a session")
}

func TestServer_JSONAPI(t *testing.T) {
	env := startEnv(t)
	c := newBrowserClient(t)
	base := env.BaseURL()

	resp, err := c.Post(base+"/api/login", "application/json", strings.NewReader(`{"email":"admin@example.com","password":"nope"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = body(t, resp)

	resp, err = c.Post(base+"/api/login", "application/json", strings.NewReader(`{"email":"admin@example.com","password":"hashed_admin_password"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, jsoniter.UnmarshalFromString(body(t, resp), &login))
	require.NotEmpty(t, login.Token)

	resp, err = c.Get(base + "/api/dashboard")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = body(t, resp)

	req, err := http.NewRequest(http.MethodGet, base+"/api/dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = c.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash struct {
		Message string `json:"message"`
		User    user   `json:"user"`
	}
	require.NoError(t, jsoniter.UnmarshalFromString(body(t, resp), &dash))
	assert.Equal(t, "Welcome", dash.Message)
	assert.Equal(t, "admin", dash.User.Role)

	resp, err = c.Post(base+"/api/login", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = body(t, resp)
}

func TestServer_Metrics(t *testing.T) {
	env := startEnv(t)
	c := newBrowserClient(t)

	resp, err := c.Get(env.BaseURL() + "/api/health")
	require.NoError(t, err)
	_ = body(t, resp)

	resp, err = c.Get(env.BaseURL() + "/metrics")
	require.NoError(t, err)
	metrics := body(t, resp)
	assert.Contains(t, metrics, `pagekit_mock_http_requests_total{code="200",route="/api/health"}`)
}

func TestEnvironment_ResetRestoresSeed(t *testing.T) {
	ctx := context.Background()
	env := startEnv(t)

	require.NoError(t, env.DB.DeleteAll(ctx, "users"))
	rows, err := env.DB.Query(ctx, "users", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, env.Reset(ctx))
	rows, err = env.DB.Query(ctx, "users", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestStartEnvironment_BadSeed(t *testing.T) {
	_, err := StartEnvironment(context.Background(), config.NewDefaultConfig(), zaptest.NewLogger(t),
		WithPort(0), WithSeedYAML([]byte("tables: [")))
	assert.ErrorContains(t, err, "failed to parse seed data")
}
