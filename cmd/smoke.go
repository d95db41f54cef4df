// File: cmd/smoke.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/browser"
	"github.com/xkilldash9x/pagekit/internal/fixtures"
	"github.com/xkilldash9x/pagekit/internal/page"
	"github.com/xkilldash9x/pagekit/internal/pages"
	"github.com/xkilldash9x/pagekit/internal/retry"
)

const (
	launchTimeout = 2 * time.Minute
	flowTimeout   = 3 * time.Minute
)

// openSession is swapped in tests so the command runs without a browser.
var openSession = browser.Open

func newSmokeCmd(a *app) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Log in, verify the dashboard and log out through a real browser",
		Long: `Runs the login smoke flow with the configured browser engine. Without
--base-url the seeded mock application is started on a free port first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			creds := fixtures.NewCredentialPool(a.cfg.TestData(), a.logger).Current()

			if baseURL == "" {
				env, err := fixtures.StartEnvironment(ctx, a.cfg, a.logger, fixtures.WithPort(0))
				if err != nil {
					return fmt.Errorf("failed to start mock environment: %w", err)
				}
				defer func() {
					closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
					defer cancel()
					if err := env.Close(closeCtx); err != nil {
						a.logger.Warn("Error during environment shutdown", zap.Error(err))
					}
				}()
				baseURL = env.BaseURL()
			}

			launchCtx, cancelLaunch := context.WithTimeout(ctx, launchTimeout)
			session, err := openSession(launchCtx, a.cfg, a.logger)
			cancelLaunch()
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					a.logger.Warn("Error closing browser", zap.Error(err))
				}
			}()

			p := page.FromConfig(session, a.cfg, page.WithLogger(a.logger), page.WithBaseURL(baseURL))
			flowCtx, cancelFlow := context.WithTimeout(ctx, flowTimeout)
			defer cancelFlow()
			if err := runSmoke(flowCtx, p, creds, a.cfg.Retry().Policy()); err != nil {
				if a.cfg.Screenshots().OnFailure {
					captureFailure(context.WithoutCancel(ctx), p, a.logger)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Smoke flow passed against %s as %s\n", baseURL, creds.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "application URL (default: start the mock application)")
	return cmd
}

// runSmoke is the flow itself: authenticate, check the dashboard, log out.
func runSmoke(ctx context.Context, p *page.Page, creds fixtures.Credentials, policy retry.Policy) error {
	if err := fixtures.Authenticate(ctx, p, creds, policy); err != nil {
		return err
	}
	dash := pages.NewDashboardPage(p)
	if err := dash.VerifyLoaded(ctx); err != nil {
		return fmt.Errorf("dashboard did not load: %w", err)
	}
	if err := dash.VerifyLoggedIn(ctx, ""); err != nil {
		return fmt.Errorf("dashboard is not showing a signed-in user: %w", err)
	}
	if err := dash.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if err := dash.WaitForLogoutRedirect(ctx); err != nil {
		return fmt.Errorf("logout did not return to the login page: %w", err)
	}
	return fixtures.ClearSession(ctx, p)
}

func captureFailure(ctx context.Context, p *page.Page, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	name := fmt.Sprintf("smoke_%s_FAILED.png", time.Now().Format("20060102_150405"))
	path, err := p.TakeScreenshot(ctx, name)
	if err != nil {
		logger.Warn("Failed to capture screenshot", zap.Error(err))
		return
	}
	logger.Error("Screenshot saved on failure", zap.String("path", path))
}
