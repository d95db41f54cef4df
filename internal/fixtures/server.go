// internal/fixtures/server.go
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/observability"
	"github.com/xkilldash9x/pagekit/internal/retry"
)

const (
	sessionCookie     = "pagekit_session"
	invalidLoginError = "Invalid email or password"
)

// DefaultHealthPolicy is five health checks one second apart.
func DefaultHealthPolicy() retry.Policy {
	return retry.Fixed(5, time.Second)
}

// ErrServerNotRunning is returned by HealthCheck before Start or after Stop.
var ErrServerNotRunning = errors.New("server not running")

// Health is the mock server's health report.
type Health struct {
	Status string `json:"status"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// user is the authenticated identity attached to a session.
type user struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Server is the mock application under test: an HTML login and dashboard
// backed by the users table, a small JSON API and Prometheus metrics.
type Server struct {
	host    string
	port    int
	db      Database
	metrics *observability.Metrics
	log     *zap.Logger
	client  *http.Client
	health  retry.Policy
	retry   []retry.Option

	mu       sync.RWMutex
	sessions map[string]user
	srv      *http.Server
	addr     *net.TCPAddr
	done     chan error
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithServerMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithHealthPolicy sets the retry policy Start uses while waiting for health.
func WithHealthPolicy(p retry.Policy) ServerOption {
	return func(s *Server) { s.health = p }
}

// WithHealthRetry passes options to the retrier used by Start, for example a
// fake clock in tests.
func WithHealthRetry(opts ...retry.Option) ServerOption {
	return func(s *Server) { s.retry = append(s.retry, opts...) }
}

// NewServer builds a server for host:port. Port 0 picks a free port on Start.
func NewServer(host string, port int, db Database, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		host:     host,
		port:     port,
		db:       db,
		log:      observability.OrNop(logger).Named("server"),
		client:   &http.Client{Timeout: 5 * time.Second},
		health:   DefaultHealthPolicy(),
		sessions: make(map[string]user),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log.Info("Server initialized", zap.String("host", host), zap.Int("port", port))
	return s
}

// Handler returns the application's router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLoginForm)
	r.Get("/dashboard", s.handleDashboardPage)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleAPILogin)
		r.Get("/dashboard", s.handleAPIDashboard)
		r.Get("/health", s.handleAPIHealth)
	})
	r.Handle("/metrics", s.metrics.Handler())
	return r
}

// observe logs each request and counts it by route pattern and status.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTPRequest(route, status)
		s.log.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start listens, serves in the background and waits until the health
// endpoint reports healthy.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s:%d: %w", s.host, s.port, err)
	}
	s.addr = ln.Addr().(*net.TCPAddr)
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.done = make(chan error, 1)
	srv, done := s.srv, s.done
	s.mu.Unlock()

	s.log.Info("Starting server", zap.String("addr", ln.Addr().String()))
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	opts := append([]retry.Option{retry.WithLogger(s.log), retry.WithName("server_health")}, s.retry...)
	err = retry.Do(ctx, s.health, func(ctx context.Context) error {
		h, err := s.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if h.Status != "healthy" {
			return fmt.Errorf("server reported status %q", h.Status)
		}
		return nil
	}, opts...)
	if err != nil {
		s.log.Error("Server failed to start", zap.Error(err))
		_ = s.Stop(context.Background())
		return fmt.Errorf("test server failed to reach healthy state: %w", err)
	}
	s.log.Info("Server is healthy", zap.String("base_url", s.BaseURL()))
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.log.Info("Stopping server")
	defer s.client.CloseIdleConnections()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	s.log.Info("Server stopped")
	return nil
}

// BaseURL is the server's root URL, or "" before Start.
func (s *Server) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	// The mock only serves plain HTTP, whatever the port.
	return "http://" + net.JoinHostPort(s.host, strconv.Itoa(s.addr.Port))
}

// HealthCheck queries /api/health.
func (s *Server) HealthCheck(ctx context.Context) (Health, error) {
	base := s.BaseURL()
	s.mu.RLock()
	running := s.srv != nil
	s.mu.RUnlock()
	if !running || base == "" {
		return Health{Status: "down"}, ErrServerNotRunning
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/health", nil)
	if err != nil {
		return Health{Status: "down"}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Health{Status: "down"}, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	var h Health
	if err := jsoniter.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{Status: "down"}, fmt.Errorf("invalid health response: %w", err)
	}
	return h, nil
}

// -- Authentication --

func (s *Server) authenticate(ctx context.Context, email, password string) (user, bool, error) {
	if email == "" || password == "" {
		return user{}, false, nil
	}
	rows, err := s.db.Query(ctx, "users", Record{"email": email, "password": password})
	if err != nil || len(rows) == 0 {
		return user{}, false, err
	}
	u := user{Email: email}
	u.Username, _ = rows[0]["username"].(string)
	u.Role, _ = rows[0]["role"].(string)
	return u, true, nil
}

func (s *Server) newSession(u user) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = u
	s.mu.Unlock()
	return token
}

// sessionUser resolves the session from the cookie or a bearer token.
func (s *Server) sessionUser(r *http.Request) (user, string, bool) {
	token := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		token = c.Value
	} else if auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		token = auth
	}
	s.mu.RLock()
	u, ok := s.sessions[token]
	s.mu.RUnlock()
	return u, token, ok
}

// Sessions reports the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// -- HTML handlers --

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := appTemplates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("Failed to render page", zap.String("page", name), zap.Error(err))
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.sessionUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.render(w, "login", loginView{Notice: r.URL.Query().Get("notice")})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	u, ok, err := s.authenticate(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		s.log.Error("User lookup failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		s.log.Info("Login rejected", zap.String("email", email))
		s.render(w, "login", loginView{Email: email, Error: invalidLoginError})
		return
	}
	cookie := &http.Cookie{Name: sessionCookie, Value: s.newSession(u), Path: "/", HttpOnly: true}
	if r.PostFormValue("remember") != "" {
		cookie.MaxAge = int((30 * 24 * time.Hour).Seconds())
	}
	http.SetCookie(w, cookie)
	s.log.Info("User logged in", zap.String("email", email))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.sessionUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.render(w, "dashboard", dashboardView{Username: u.Username, Email: u.Email, Status: "All systems operational"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, token, ok := s.sessionUser(r); ok {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// -- JSON API --

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoniter.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := jsoniter.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	u, ok, err := s.authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "user lookup failed"})
		return
	}
	if !ok {
		s.respondJSON(w, http.StatusUnauthorized, map[string]string{"error": invalidLoginError})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"token": s.newSession(u)})
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.sessionUser(r)
	if !ok {
		s.respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"message": "Welcome", "user": u})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	port := s.port
	if s.addr != nil {
		port = s.addr.Port
	}
	s.mu.RUnlock()
	s.respondJSON(w, http.StatusOK, Health{Status: "healthy", Host: s.host, Port: port})
}
