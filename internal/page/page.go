// File: internal/page/page.go
// Package page provides self-healing element interactions over a Driver.
//
// Every method re-resolves its selector through the driver, so a wait and the
// action that follows it never share a stale element handle. Reads and probes
// favor availability and never fail. Actions and assertions always surface
// their errors.
package page

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/observability"
	"github.com/xkilldash9x/pagekit/internal/retry"
	"github.com/xkilldash9x/pagekit/internal/wait"
	"go.uber.org/zap"
)

const (
	// DefaultClickAttempts is the attempt budget for Click.
	DefaultClickAttempts = 3
	// DefaultClickDelay is the fixed pause between click attempts.
	DefaultClickDelay = time.Second
	// TypeDelay paces keystrokes in TypeText.
	TypeDelay = 50 * time.Millisecond
)

// Timeouts are the defaults used when a call passes a zero timeout.
type Timeouts struct {
	ElementWait time.Duration
	PageLoad    time.Duration
	Poll        time.Duration
}

// DefaultTimeouts mirror the config defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ElementWait: 10 * time.Second,
		PageLoad:    30 * time.Second,
		Poll:        wait.DefaultInterval,
	}
}

// Page is the interaction façade. It borrows the driver and never closes it.
// A Page is meant for one flow at a time, like the driver session beneath it.
type Page struct {
	driver        Driver
	logger        *zap.Logger
	clock         wait.Clock
	metrics       *observability.Metrics
	timeouts      Timeouts
	clickDelay    time.Duration
	clickAttempts int
	baseURL       string
	screenshotDir string
}

// Option configures a Page.
type Option func(*Page)

func WithLogger(l *zap.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithClock(c wait.Clock) Option {
	return func(p *Page) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Page) { p.metrics = m }
}

// WithTimeouts overrides the default timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(p *Page) {
		if t.ElementWait > 0 {
			p.timeouts.ElementWait = t.ElementWait
		}
		if t.PageLoad > 0 {
			p.timeouts.PageLoad = t.PageLoad
		}
		if t.Poll > 0 {
			p.timeouts.Poll = t.Poll
		}
	}
}

// WithClickDelay sets the pause between click attempts.
func WithClickDelay(d time.Duration) Option {
	return func(p *Page) {
		if d >= 0 {
			p.clickDelay = d
		}
	}
}

// WithClickAttempts sets the attempt budget Click uses. Values below one are ignored.
func WithClickAttempts(n int) Option {
	return func(p *Page) {
		if n >= 1 {
			p.clickAttempts = n
		}
	}
}

// WithBaseURL sets the URL Goto uses when called with an empty string.
func WithBaseURL(u string) Option {
	return func(p *Page) { p.baseURL = u }
}

// WithScreenshotDir sets where TakeScreenshot writes files.
func WithScreenshotDir(dir string) Option {
	return func(p *Page) { p.screenshotDir = dir }
}

// New wraps d. It panics on a nil driver since no method could work without one.
func New(d Driver, opts ...Option) *Page {
	if d == nil {
		panic("page: nil driver")
	}
	p := &Page{
		driver:        d,
		logger:        zap.NewNop(),
		clock:         wait.RealClock{},
		timeouts:      DefaultTimeouts(),
		clickDelay:    DefaultClickDelay,
		clickAttempts: DefaultClickAttempts,
		screenshotDir: "screenshots",
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("page")
	return p
}

// FromConfig builds a Page with timeouts, click attempts and delay, base URL
// and screenshot directory taken from cfg. Explicit opts are applied afterwards.
func FromConfig(d Driver, cfg config.Interface, opts ...Option) *Page {
	base := []Option{
		WithTimeouts(Timeouts{
			ElementWait: cfg.Timeouts().ElementWaitDuration(),
			PageLoad:    cfg.Timeouts().PageLoadDuration(),
			Poll:        cfg.Poll().Interval,
		}),
		WithClickDelay(cfg.Retry().ClickDelay),
		WithClickAttempts(cfg.Retry().MaxAttempts),
		WithBaseURL(cfg.BaseURL()),
		WithScreenshotDir(cfg.Screenshots().Dir),
	}
	return New(d, append(base, opts...)...)
}

// Driver returns the underlying driver.
func (p *Page) Driver() Driver { return p.driver }

// Logger returns the page logger.
func (p *Page) Logger() *zap.Logger { return p.logger }

// Timeouts returns the effective default timeouts.
func (p *Page) Timeouts() Timeouts { return p.timeouts }

// BaseURL returns the configured base URL.
func (p *Page) BaseURL() string { return p.baseURL }

func (p *Page) elementTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return p.timeouts.ElementWait
}

func (p *Page) pageLoadTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return p.timeouts.PageLoad
}

// -- Navigation --

// Goto navigates to url, or to the base URL when url is empty.
func (p *Page) Goto(ctx context.Context, url string) error {
	if url == "" {
		url = p.baseURL
	}
	if url == "" {
		return fmt.Errorf("goto: no url given and no base url configured")
	}
	p.logger.Info("Navigating", zap.String("url", url))
	if err := p.driver.Navigate(ctx, url); err != nil {
		p.logger.Error("Navigation failed", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("navigation to '%s' failed: %w", url, err)
	}
	p.logger.Debug("Navigated", zap.String("url", url))
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.logger.Info("Reloading page")
	if err := p.driver.Reload(ctx); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

func (p *Page) GoBack(ctx context.Context) error {
	p.logger.Info("Going back to previous page")
	if err := p.driver.Back(ctx); err != nil {
		return fmt.Errorf("history back failed: %w", err)
	}
	return nil
}

func (p *Page) GoForward(ctx context.Context) error {
	p.logger.Info("Going forward to next page")
	if err := p.driver.Forward(ctx); err != nil {
		return fmt.Errorf("history forward failed: %w", err)
	}
	return nil
}

// -- Page state --

// Title returns the document title, or "" if the driver cannot read it.
func (p *Page) Title(ctx context.Context) string {
	title, err := p.driver.Title(ctx)
	if err != nil {
		p.logger.Debug("Could not read page title", zap.Error(err))
		return ""
	}
	p.logger.Debug("Page title", zap.String("title", title))
	return title
}

// CurrentURL returns the page URL, or "" if the driver cannot read it.
func (p *Page) CurrentURL(ctx context.Context) string {
	u, err := p.driver.CurrentURL(ctx)
	if err != nil {
		p.logger.Debug("Could not read current url", zap.Error(err))
		return ""
	}
	return u
}

// Source returns the serialized document.
func (p *Page) Source(ctx context.Context) (string, error) {
	p.logger.Info("Getting page source")
	html, err := p.driver.Content(ctx)
	if err != nil {
		return "", fmt.Errorf("reading page source failed: %w", err)
	}
	return html, nil
}

// TakeScreenshot captures the page into the screenshot directory and returns
// the file path. An empty name gets a timestamped one.
func (p *Page) TakeScreenshot(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("screenshot_%s.png", p.clock.Now().Format("20060102_150405"))
	}
	buf, err := p.driver.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}
	if err := os.MkdirAll(p.screenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	path := filepath.Join(p.screenshotDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	p.logger.Info("Screenshot saved", zap.String("path", path))
	return path, nil
}

// ClearSession drops cookies and web storage for the current origin.
func (p *Page) ClearSession(ctx context.Context) error {
	if err := p.driver.ClearCookies(ctx); err != nil {
		return fmt.Errorf("clearing cookies failed: %w", err)
	}
	if err := p.driver.Evaluate(ctx, "window.localStorage.clear(); window.sessionStorage.clear();", nil); err != nil {
		return fmt.Errorf("clearing web storage failed: %w", err)
	}
	p.logger.Debug("Session cleared")
	return nil
}

func (p *Page) clickPolicy(attempts int) retry.Policy {
	return retry.Fixed(attempts, p.clickDelay)
}
