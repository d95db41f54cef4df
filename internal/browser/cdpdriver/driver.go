// internal/browser/cdpdriver/driver.go
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagekit/internal/observability"
	"github.com/xkilldash9x/pagekit/internal/page"
	"github.com/xkilldash9x/pagekit/internal/wait"
)

var (
	// ErrNoElement is returned by actions whose selector matches nothing.
	ErrNoElement = errors.New("no element matches selector")
	// ErrClosed is returned once the browser has been shut down.
	ErrClosed = errors.New("browser session is closed")
)

const (
	defaultOpTimeout    = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
	networkQuietWindow  = 500 * time.Millisecond
	loadStatePollPeriod = 100 * time.Millisecond
)

// Options controls how Chrome is launched.
type Options struct {
	Headless bool
	ExecPath string
	Width    int
	Height   int
	// SlowMo pauses before every browser operation.
	SlowMo time.Duration
	// OpTimeout bounds a single CDP round trip. Zero uses 30s.
	OpTimeout time.Duration
	// Args are extra command line flags, either "name" or "name=value".
	Args []string
}

// allocatorOptions builds the exec allocator flags for o.
func allocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("enable-automation", true),
	}
	if o.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if o.Width > 0 && o.Height > 0 {
		opts = append(opts, chromedp.WindowSize(o.Width, o.Height))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	for _, arg := range o.Args {
		name, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// Driver implements page.Driver on a single Chrome tab via the DevTools
// protocol.
type Driver struct {
	logger    *zap.Logger
	opTimeout time.Duration
	slowMo    time.Duration

	mu          sync.Mutex
	closed      bool
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

var _ page.Driver = (*Driver)(nil)

// Launch starts Chrome and opens a tab. The browser outlives ctx; call Close
// to shut it down.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Driver, error) {
	logger = observability.OrNop(logger).Named("cdp")
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Warnf),
	)

	d := &Driver{
		logger:      logger,
		opTimeout:   opts.OpTimeout,
		slowMo:      opts.SlowMo,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	if err := d.start(ctx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info("Browser started", zap.Bool("headless", opts.Headless))
	return d, nil
}

// Close shuts the browser down gracefully, falling back to killing the
// allocator if the graceful close does not finish in time.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	defer d.allocCancel()
	shutdownCtx, cancel := context.WithTimeout(d.tabCtx, shutdownTimeout)
	defer cancel()
	err := chromedp.Cancel(shutdownCtx)
	d.tabCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("Graceful browser shutdown failed", zap.Error(err))
		return fmt.Errorf("failed to close browser: %w", err)
	}
	d.logger.Info("Browser closed")
	return nil
}

// startBrowser is chromedp.Run; tests swap it to observe the launch context.
var startBrowser = chromedp.Run

// start allocates the browser. The first Run on a chromedp context owns the
// browser process, so it runs on the long-lived tab context, never on a
// derived one. ctx only bounds how long Launch waits for it.
func (d *Driver) start(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- startBrowser(d.tabCtx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		d.tabCancel()
		<-done
		return ctx.Err()
	}
}

// run executes actions on the tab, bounded by ctx and the per-operation
// timeout.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	opCtx, cancel := combineContext(d.tabCtx, ctx)
	defer cancel()
	opCtx, cancelTimeout := context.WithTimeout(opCtx, d.opTimeout)
	defer cancelTimeout()

	if d.slowMo > 0 {
		if err := (wait.RealClock{}).Sleep(opCtx, d.slowMo); err != nil {
			return err
		}
	}
	return chromedp.Run(opCtx, actions...)
}

// lookup evaluates an element script and decodes its result.
func (d *Driver) lookup(ctx context.Context, script string) (lookupResult, error) {
	var res lookupResult
	if err := d.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return lookupResult{}, err
	}
	return res, nil
}

// require fails with ErrNoElement when selector has no match.
func (d *Driver) require(ctx context.Context, selector string) error {
	n, err := d.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return nil
}

// -- Navigation --

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *Driver) Reload(ctx context.Context) error {
	return d.run(ctx, chromedp.Reload())
}

func (d *Driver) Back(ctx context.Context) error {
	return d.run(ctx, chromedp.NavigateBack())
}

func (d *Driver) Forward(ctx context.Context) error {
	return d.run(ctx, chromedp.NavigateForward())
}

// WaitForLoadState polls document.readyState. Network idle has no direct
// CDP equivalent here; it is approximated as a complete document whose
// resource entry count has not grown for half a second.
func (d *Driver) WaitForLoadState(ctx context.Context, state page.LoadState, timeout time.Duration) error {
	if !state.Valid() {
		return fmt.Errorf("unknown load state %q", state)
	}
	var (
		lastCount   = -1
		stableSince time.Time
	)
	reached := func(ctx context.Context) (bool, error) {
		var probe loadProbe
		if err := d.run(ctx, chromedp.Evaluate(loadProbeScript, &probe)); err != nil {
			return false, err
		}
		switch state {
		case page.LoadStateDOMContentLoaded:
			return probe.State == "interactive" || probe.State == "complete", nil
		case page.LoadStateLoad:
			return probe.State == "complete", nil
		}
		if probe.State != "complete" {
			lastCount = -1
			return false, nil
		}
		now := time.Now()
		if probe.Resources != lastCount {
			lastCount = probe.Resources
			stableSince = now
			return false, nil
		}
		return now.Sub(stableSince) >= networkQuietWindow, nil
	}

	ok, err := wait.Until(ctx, wait.Spec{Timeout: timeout, Interval: loadStatePollPeriod}, reached,
		wait.WithLogger(d.logger), wait.WithName("load_state:"+string(state)))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("load state %s not reached within %v", state, timeout)
	}
	return nil
}

// -- Document state --

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, chromedp.Location(&url))
	return url, err
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, chromedp.Title(&title))
	return title, err
}

func (d *Driver) Content(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// -- Probes --

func (d *Driver) Count(ctx context.Context, selector string) (int, error) {
	var n int
	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := d.run(ctx, chromedp.Evaluate(script, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Driver) IsVisible(ctx context.Context, selector string) (bool, error) {
	res, err := d.lookup(ctx, visibleScript(selector))
	return res.Found && res.Flag, err
}

func (d *Driver) IsEnabled(ctx context.Context, selector string) (bool, error) {
	res, err := d.lookup(ctx, enabledScript(selector))
	return res.Found && res.Flag, err
}

func (d *Driver) IsChecked(ctx context.Context, selector string) (bool, error) {
	res, err := d.lookup(ctx, checkedScript(selector))
	return res.Found && res.Flag, err
}

// -- Actions --

func (d *Driver) Click(ctx context.Context, selector string) error {
	if err := d.require(ctx, selector); err != nil {
		return err
	}
	return d.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	if err := d.require(ctx, selector); err != nil {
		return err
	}
	actions := []chromedp.Action{chromedp.Clear(selector, chromedp.ByQuery)}
	if value != "" {
		actions = append(actions, chromedp.SendKeys(selector, value, chromedp.ByQuery))
	}
	return d.run(ctx, actions...)
}

// Type sends text one character at a time, paced so consecutive keystrokes
// are at least delay apart.
func (d *Driver) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	if err := d.require(ctx, selector); err != nil {
		return err
	}
	if delay <= 0 {
		return d.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	for _, r := range text {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := d.run(ctx, chromedp.SendKeys(selector, string(r), chromedp.ByQuery)); err != nil {
			return err
		}
	}
	return nil
}

// Hover moves the mouse to the centre of the element's content box.
func (d *Driver) Hover(ctx context.Context, selector string) error {
	if err := d.require(ctx, selector); err != nil {
		return err
	}
	return d.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var nodes []*cdp.Node
			if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery).Do(ctx); err != nil {
				return err
			}
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to get box model for %s: %w", selector, err)
			}
			x, y := quadCenter(box.Content)
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
}

// quadCenter returns the centre of a CDP quad (four x,y pairs).
func quadCenter(q dom.Quad) (float64, float64) {
	if len(q) < 8 {
		return 0, 0
	}
	return (q[0] + q[2] + q[4] + q[6]) / 4, (q[1] + q[3] + q[5] + q[7]) / 4
}

func (d *Driver) ScrollIntoView(ctx context.Context, selector string) error {
	if err := d.require(ctx, selector); err != nil {
		return err
	}
	return d.run(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

func (d *Driver) SelectOption(ctx context.Context, selector, value string) error {
	res, err := d.lookup(ctx, selectScript(selector, value))
	if err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	if !res.Flag {
		return fmt.Errorf("option %q not available in %s", value, selector)
	}
	return nil
}

// -- Reads --

func (d *Driver) TextContent(ctx context.Context, selector string) (string, bool, error) {
	res, err := d.lookup(ctx, textScript(selector))
	if err != nil || !res.Found || res.Value == nil {
		return "", false, err
	}
	return *res.Value, true, nil
}

func (d *Driver) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	res, err := d.lookup(ctx, attributeScript(selector, name))
	if err != nil || !res.Found || res.Value == nil {
		return "", false, err
	}
	return *res.Value, true, nil
}

// -- Session --

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) ClearCookies(ctx context.Context) error {
	return d.run(ctx, network.ClearBrowserCookies())
}

func (d *Driver) Evaluate(ctx context.Context, expression string, out any) error {
	return d.run(ctx, chromedp.Evaluate(expression, out))
}
