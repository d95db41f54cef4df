// File: internal/pages/login.go
// Package pages holds page objects. Each one wraps a *page.Page and a set of
// selectors; behavior comes from the façade, not from embedding.
package pages

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/pagekit/internal/page"
	"go.uber.org/zap"
)

// Login page selectors.
const (
	LoginEmailInput     = "input[data-testid='email']"
	LoginPasswordInput  = "input[data-testid='password']"
	LoginButton         = "button[data-testid='login-button']"
	LoginRememberMe     = "input[data-testid='remember-me']"
	LoginErrorMessage   = ".error-message"
	LoginSuccessMessage = ".success-message"
	LoginForm           = "form[data-testid='login-form']"
	LoginTitle          = "h1"
)

// LoginPage drives the sign-in form.
type LoginPage struct {
	p   *page.Page
	log *zap.Logger
}

func NewLoginPage(p *page.Page) *LoginPage {
	return &LoginPage{p: p, log: p.Logger().Named("login")}
}

// Page exposes the façade for steps the page object does not cover.
func (l *LoginPage) Page() *page.Page { return l.p }

// Open navigates to the base URL and waits for the form.
func (l *LoginPage) Open(ctx context.Context) error {
	l.log.Info("Navigating to login page")
	if err := l.p.Goto(ctx, ""); err != nil {
		return err
	}
	return l.p.WaitForElementVisible(ctx, LoginForm, 0)
}

func (l *LoginPage) EnterEmail(ctx context.Context, email string) error {
	l.log.Info("Entering email", zap.String("email", email))
	return l.p.TypeText(ctx, LoginEmailInput, email, true)
}

func (l *LoginPage) EnterPassword(ctx context.Context, password string) error {
	l.log.Info("Entering password")
	return l.p.TypeText(ctx, LoginPasswordInput, password, true)
}

func (l *LoginPage) Submit(ctx context.Context) error {
	return l.p.Click(ctx, LoginButton)
}

// Login fills both fields and submits. It does not wait for the redirect.
func (l *LoginPage) Login(ctx context.Context, email, password string) error {
	l.log.Info("Logging in", zap.String("email", email))
	if err := l.EnterEmail(ctx, email); err != nil {
		return err
	}
	if err := l.EnterPassword(ctx, password); err != nil {
		return err
	}
	return l.Submit(ctx)
}

// LoginWithRememberMe is Login with the remember-me box ticked.
func (l *LoginPage) LoginWithRememberMe(ctx context.Context, email, password string) error {
	l.log.Info("Logging in with remember me", zap.String("email", email))
	if err := l.EnterEmail(ctx, email); err != nil {
		return err
	}
	if err := l.EnterPassword(ctx, password); err != nil {
		return err
	}
	if err := l.p.CheckCheckbox(ctx, LoginRememberMe); err != nil {
		return err
	}
	return l.Submit(ctx)
}

func (l *LoginPage) VerifyDisplayed(ctx context.Context) error {
	return l.p.AssertElementVisible(ctx, LoginForm)
}

// VerifyError asserts the error banner is shown and, if expected is not
// empty, that it contains expected. It returns the banner text.
func (l *LoginPage) VerifyError(ctx context.Context, expected string) (string, error) {
	if err := l.p.AssertElementVisible(ctx, LoginErrorMessage); err != nil {
		return "", err
	}
	text := l.p.GetText(ctx, LoginErrorMessage)
	if expected != "" {
		if err := l.p.AssertTextContains(ctx, LoginErrorMessage, expected); err != nil {
			return text, err
		}
	}
	return text, nil
}

func (l *LoginPage) VerifyNoError(ctx context.Context) error {
	if l.p.IsElementPresent(ctx, LoginErrorMessage) {
		return &page.AssertionError{
			Assertion: "no_error_message",
			Target:    LoginErrorMessage,
			Expected:  "absent",
			Actual:    "present",
			Message:   "Error message should not be displayed",
		}
	}
	return nil
}

func (l *LoginPage) Title(ctx context.Context) string {
	return l.p.GetText(ctx, LoginTitle)
}

// IsFormReady reports whether both inputs are visible and the button is enabled.
func (l *LoginPage) IsFormReady(ctx context.Context) bool {
	ready := l.p.IsVisible(ctx, LoginEmailInput) &&
		l.p.IsVisible(ctx, LoginPasswordInput) &&
		l.p.IsEnabled(ctx, LoginButton)
	l.log.Info("Login form ready", zap.Bool("ready", ready))
	return ready
}

// WaitForLoad waits for the form, network idle, then the heading.
func (l *LoginPage) WaitForLoad(ctx context.Context) error {
	if err := l.p.WaitForElementVisible(ctx, LoginForm, 0); err != nil {
		return err
	}
	if err := l.p.WaitForLoadState(ctx, page.LoadStateNetworkIdle, 0); err != nil {
		return err
	}
	if err := l.p.WaitForElementVisible(ctx, LoginTitle, 0); err != nil {
		return fmt.Errorf("login page heading: %w", err)
	}
	return nil
}
