// internal/browser/pwdriver/driver.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/observability"
	"github.com/xkilldash9x/pagekit/internal/page"
)

// ErrClosed is returned once the browser has been shut down.
var ErrClosed = errors.New("browser session is closed")

const defaultTimeout = 30 * time.Second

// Options controls which browser Playwright launches and how.
type Options struct {
	// Browser is chromium, firefox or webkit. Empty means chromium.
	Browser  string
	Headless bool
	SlowMo   time.Duration
	Width    int
	Height   int
	// Timeout is the default for every Playwright call. Zero uses 30s.
	Timeout time.Duration
	// Install downloads the driver and browser binaries if missing.
	Install bool
}

// Driver implements page.Driver on a Playwright page. Playwright calls are
// not context aware; ctx is checked before each call and the default
// timeout bounds the call itself.
type Driver struct {
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

var _ page.Driver = (*Driver)(nil)

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// Launch starts Playwright, the requested browser and a single page.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Driver, error) {
	logger = observability.OrNop(logger).Named("playwright")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Browser == "" {
		opts.Browser = "chromium"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	switch opts.Browser {
	case "chromium", "firefox", "webkit":
	default:
		return nil, fmt.Errorf("unsupported browser %q (expected chromium, firefox or webkit)", opts.Browser)
	}

	runOpts := &playwright.RunOptions{Browsers: []string{opts.Browser}, Verbose: false}
	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch opts.Browser {
	case "chromium":
		bt = pw.Chromium
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	}

	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   ms(opts.SlowMo),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", opts.Browser, err)
	}

	pageOpts := playwright.BrowserNewPageOptions{}
	if opts.Width > 0 && opts.Height > 0 {
		pageOpts.Viewport = &playwright.Size{Width: opts.Width, Height: opts.Height}
	}
	pg, err := browser.NewPage(pageOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	pg.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))
	pg.SetDefaultNavigationTimeout(float64(opts.Timeout.Milliseconds()))

	logger.Info("Browser started", zap.String("browser", opts.Browser), zap.Bool("headless", opts.Headless))
	return &Driver{logger: logger, pw: pw, browser: browser, page: pg}, nil
}

// Close closes the page, then the browser, then stops Playwright. Every step
// runs even if an earlier one fails.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := d.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		d.logger.Warn("Browser shutdown incomplete", zap.Error(err))
		return err
	}
	d.logger.Info("Browser closed")
	return nil
}

// ready reports whether a call may proceed.
func (d *Driver) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

// first returns the first match for selector, or nil when nothing matches.
// Playwright auto-waits on most locator calls; checking the count first
// keeps probes from blocking on absent elements.
func (d *Driver) first(ctx context.Context, selector string) (playwright.Locator, error) {
	if err := d.ready(ctx); err != nil {
		return nil, err
	}
	loc := d.page.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return loc.First(), nil
}

// -- Navigation --

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *Driver) Reload(ctx context.Context) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	_, err := d.page.Reload()
	return err
}

func (d *Driver) Back(ctx context.Context) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	_, err := d.page.GoBack()
	return err
}

func (d *Driver) Forward(ctx context.Context) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	_, err := d.page.GoForward()
	return err
}

// loadStates maps page load states onto Playwright's.
var loadStates = map[page.LoadState]*playwright.LoadState{
	page.LoadStateLoad:             playwright.LoadStateLoad,
	page.LoadStateDOMContentLoaded: playwright.LoadStateDomcontentloaded,
	page.LoadStateNetworkIdle:      playwright.LoadStateNetworkidle,
}

func (d *Driver) WaitForLoadState(ctx context.Context, state page.LoadState, timeout time.Duration) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	pwState, ok := loadStates[state]
	if !ok {
		return fmt.Errorf("unknown load state %q", state)
	}
	return d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: pwState, Timeout: ms(timeout)})
}

// -- Document state --

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := d.ready(ctx); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	if err := d.ready(ctx); err != nil {
		return "", err
	}
	return d.page.Title()
}

func (d *Driver) Content(ctx context.Context) (string, error) {
	if err := d.ready(ctx); err != nil {
		return "", err
	}
	return d.page.Content()
}

// -- Probes --

func (d *Driver) Count(ctx context.Context, selector string) (int, error) {
	if err := d.ready(ctx); err != nil {
		return 0, err
	}
	return d.page.Locator(selector).Count()
}

// probe runs check on the first match; no match reads as false.
func (d *Driver) probe(ctx context.Context, selector string, check func(playwright.Locator) (bool, error)) (bool, error) {
	loc, err := d.first(ctx, selector)
	if err != nil || loc == nil {
		return false, err
	}
	return check(loc)
}

func (d *Driver) IsVisible(ctx context.Context, selector string) (bool, error) {
	return d.probe(ctx, selector, func(l playwright.Locator) (bool, error) { return l.IsVisible() })
}

func (d *Driver) IsEnabled(ctx context.Context, selector string) (bool, error) {
	return d.probe(ctx, selector, func(l playwright.Locator) (bool, error) { return l.IsEnabled() })
}

func (d *Driver) IsChecked(ctx context.Context, selector string) (bool, error) {
	return d.probe(ctx, selector, func(l playwright.Locator) (bool, error) { return l.IsChecked() })
}

// -- Actions --

// act runs fn on the first match for selector.
func (d *Driver) act(ctx context.Context, selector string, fn func(playwright.Locator) error) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	return fn(d.page.Locator(selector).First())
}

func (d *Driver) Click(ctx context.Context, selector string) error {
	return d.act(ctx, selector, func(l playwright.Locator) error { return l.Click() })
}

func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	return d.act(ctx, selector, func(l playwright.Locator) error { return l.Fill(value) })
}

func (d *Driver) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	return d.act(ctx, selector, func(l playwright.Locator) error {
		return l.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Delay: ms(delay)})
	})
}

func (d *Driver) Hover(ctx context.Context, selector string) error {
	return d.act(ctx, selector, func(l playwright.Locator) error { return l.Hover() })
}

func (d *Driver) ScrollIntoView(ctx context.Context, selector string) error {
	return d.act(ctx, selector, func(l playwright.Locator) error { return l.ScrollIntoViewIfNeeded() })
}

func (d *Driver) SelectOption(ctx context.Context, selector, value string) error {
	return d.act(ctx, selector, func(l playwright.Locator) error {
		selected, err := l.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}})
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return fmt.Errorf("option %q not available in %s", value, selector)
		}
		return nil
	})
}

// -- Reads --

// read evaluates expr against the first match. A null result reads as not ok.
func (d *Driver) read(ctx context.Context, selector, expr string, arg any) (string, bool, error) {
	loc, err := d.first(ctx, selector)
	if err != nil || loc == nil {
		return "", false, err
	}
	v, err := loc.Evaluate(expr, arg)
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (d *Driver) TextContent(ctx context.Context, selector string) (string, bool, error) {
	return d.read(ctx, selector, `el => el.textContent`, nil)
}

func (d *Driver) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	return d.read(ctx, selector, `(el, name) => el.getAttribute(name)`, name)
}

// -- Session --

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.ready(ctx); err != nil {
		return nil, err
	}
	buf, err := d.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) ClearCookies(ctx context.Context) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	return d.page.Context().ClearCookies()
}

// Evaluate runs expression and, when out is non-nil, decodes the result into
// it by round-tripping through JSON.
func (d *Driver) Evaluate(ctx context.Context, expression string, out any) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	v, err := d.page.Evaluate(expression)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := jsoniter.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	return jsoniter.Unmarshal(raw, out)
}
