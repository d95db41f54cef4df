// internal/fixtures/credentials.go
package fixtures

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/observability"
	"github.com/xkilldash9x/pagekit/internal/page"
	"github.com/xkilldash9x/pagekit/internal/pages"
	"github.com/xkilldash9x/pagekit/internal/retry"
)

// WorkerEnvVar names the variable carrying the parallel worker id ("gw0",
// "gw1", ...). Unset or "master" means a sequential run.
const WorkerEnvVar = "PAGEKIT_WORKER"

const dashboardURL = "**/dashboard"

// Credentials is one login.
type Credentials struct {
	Email    string
	Password string
}

// CredentialPool hands each parallel worker its own account so concurrent
// sessions do not log each other out.
type CredentialPool struct {
	entries []Credentials
	log     *zap.Logger
}

// NewCredentialPool builds the pool: the configured valid user first, then
// the four seeded test users.
func NewCredentialPool(td config.TestDataConfig, logger *zap.Logger) *CredentialPool {
	entries := []Credentials{{Email: td.ValidUser, Password: td.ValidPassword}}
	for i := 2; i <= 5; i++ {
		entries = append(entries, Credentials{
			Email:    fmt.Sprintf("test_user_%d@example.com", i),
			Password: fmt.Sprintf("test_password_%d", i),
		})
	}
	return &CredentialPool{entries: entries, log: observability.OrNop(logger).Named("auth")}
}

func (c *CredentialPool) Len() int { return len(c.entries) }

// ForWorker maps "gwN" to entry N mod Len. Any other id gets entry 0.
func (c *CredentialPool) ForWorker(id string) Credentials {
	idx := 0
	if rest, ok := strings.CutPrefix(id, "gw"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 0 {
			idx = n % len(c.entries)
		}
	}
	creds := c.entries[idx]
	c.log.Info("Worker assigned login", zap.String("worker", id), zap.String("email", creds.Email))
	return creds
}

// Current returns the credentials for the worker named in WorkerEnvVar.
func (c *CredentialPool) Current() Credentials {
	id := os.Getenv(WorkerEnvVar)
	if id == "" {
		id = "master"
	}
	return c.ForWorker(id)
}

// Authenticate logs creds in through the login page and waits for the
// dashboard, retrying the whole flow under policy (retry.DefaultPolicy is
// three attempts two seconds apart; config.RetryConfig.Policy is the
// configured one).
func Authenticate(ctx context.Context, p *page.Page, creds Credentials, policy retry.Policy, opts ...retry.Option) error {
	log := p.Logger().Named("auth")
	log.Info("Authenticating user", zap.String("email", creds.Email))
	login := pages.NewLoginPage(p)

	opts = append([]retry.Option{retry.WithLogger(log), retry.WithName("authenticate")}, opts...)
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if err := login.Open(ctx); err != nil {
			return err
		}
		if err := p.WaitForLoadState(ctx, page.LoadStateNetworkIdle, 0); err != nil {
			return err
		}
		if err := login.Login(ctx, creds.Email, creds.Password); err != nil {
			return err
		}
		return p.WaitForURL(ctx, dashboardURL, 0)
	}, opts...)
	if err != nil {
		return fmt.Errorf("authentication failed for %s: %w", creds.Email, err)
	}
	log.Info("User authenticated", zap.String("email", creds.Email))
	return nil
}

// ClearSession drops cookies and web storage after an authenticated test.
// Failures are logged and returned.
func ClearSession(ctx context.Context, p *page.Page) error {
	if err := p.ClearSession(ctx); err != nil {
		p.Logger().Warn("Cleanup error", zap.Error(err))
		return err
	}
	return nil
}
