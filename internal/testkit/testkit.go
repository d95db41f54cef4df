// internal/testkit/testkit.go
package testkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagekit/internal/browser"
	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/fixtures"
	"github.com/xkilldash9x/pagekit/internal/page"
)

// SkipFlakyEnvVar, when set to a non-empty value, skips tests marked flaky.
const SkipFlakyEnvVar = "PAGEKIT_SKIP_FLAKY"

const (
	environmentTimeout = time.Minute
	shutdownTimeout    = 15 * time.Second
)

// NewLogger returns a debug-level logger that writes through t.
func NewLogger(t testing.TB) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
}

// LoadConfig loads the profile named by PAGEKIT_ENV (dev when unset) and
// fails the test if it does not load.
func LoadConfig(t testing.TB) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("failed to load configuration: %v", err)
	}
	return cfg
}

// StartEnvironment starts a seeded database and the mock server on a free
// port, and tears both down when the test ends.
func StartEnvironment(t testing.TB, cfg config.Interface, opts ...fixtures.EnvOption) *fixtures.Environment {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), environmentTimeout)
	defer cancel()

	opts = append([]fixtures.EnvOption{fixtures.WithPort(0)}, opts...)
	env, err := fixtures.StartEnvironment(ctx, cfg, NewLogger(t), opts...)
	if err != nil {
		t.Fatalf("failed to start test environment: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := env.Close(ctx); err != nil {
			t.Logf("Error during environment shutdown: %v", err)
		}
	})
	return env
}

// OpenPage launches the configured browser and wraps it in a Page pointed at
// baseURL (or the configured base URL when empty). The test is skipped when
// no browser can be started. A screenshot is saved if the test fails.
func OpenPage(t testing.TB, cfg config.Interface, baseURL string, opts ...page.Option) *page.Page {
	t.Helper()
	logger := NewLogger(t)
	ctx, cancel := context.WithTimeout(context.Background(), environmentTimeout)
	defer cancel()

	session, err := browser.Open(ctx, cfg, logger)
	if err != nil {
		t.Skipf("browser unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := session.Close(); err != nil {
			t.Logf("Error closing browser: %v", err)
		}
	})

	opts = append([]page.Option{page.WithLogger(logger)}, opts...)
	if baseURL != "" {
		opts = append(opts, page.WithBaseURL(baseURL))
	}
	p := page.FromConfig(session, cfg, opts...)
	ScreenshotOnFailure(t, p)
	return p
}

// Step runs fn as a named test step, logging its outcome and duration.
func Step(logger *zap.Logger, name string, fn func() error) error {
	logger.Info("Executing step", zap.String("step", name))
	start := time.Now()
	err := fn()
	fields := []zap.Field{zap.String("step", name), zap.Duration("duration", time.Since(start))}
	if err != nil {
		logger.Error("Step failed", append(fields, zap.Error(err))...)
		return fmt.Errorf("step %q: %w", name, err)
	}
	logger.Info("Step completed", fields...)
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// ScreenshotOnFailure captures the page when t has failed by cleanup time.
// Cleanups run in reverse order, so register it after the browser's own
// cleanup to capture before the browser closes.
func ScreenshotOnFailure(t testing.TB, p *page.Page) {
	t.Helper()
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		name := fmt.Sprintf("%s_%s_FAILED.png", unsafeName.ReplaceAllString(t.Name(), "_"), time.Now().Format("20060102_150405"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		path, err := p.TakeScreenshot(ctx, name)
		if err != nil {
			p.Logger().Warn("Failed to capture screenshot", zap.Error(err))
			return
		}
		p.Logger().Error("Screenshot saved on failure", zap.String("path", path))
	})
}

// MarkFlaky records that a test is known to be unstable. It is skipped when
// SkipFlakyEnvVar is set.
func MarkFlaky(t testing.TB, reason string) {
	t.Helper()
	if os.Getenv(SkipFlakyEnvVar) != "" {
		t.Skipf("flaky test skipped: %s", reason)
	}
	t.Logf("flaky test: %s", reason)
}

// SkipOnError skips the test when err matches target. Other errors, and nil,
// are returned unchanged for the caller to handle.
func SkipOnError(t testing.TB, err, target error, msg string) error {
	t.Helper()
	if err != nil && errors.Is(err, target) {
		t.Skipf("%s: %v", msg, err)
	}
	return err
}
