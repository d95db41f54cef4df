// File: internal/page/waits.go
package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xkilldash9x/pagekit/internal/wait"
	"go.uber.org/zap"
)

// poll runs pred under the page clock and logger. It reports whether the
// condition held and how long the poll took.
func (p *Page) poll(ctx context.Context, name string, timeout time.Duration, pred wait.Predicate) (bool, time.Duration, error) {
	start := p.clock.Now()
	ok, err := wait.Until(ctx,
		wait.Spec{Timeout: timeout, Interval: p.timeouts.Poll},
		pred,
		wait.WithClock(p.clock),
		wait.WithLogger(p.logger),
		wait.WithName(name))
	return ok, p.clock.Now().Sub(start), err
}

func (p *Page) stateCheck(selector string, state State) wait.Predicate {
	switch state {
	case Attached:
		return func(ctx context.Context) (bool, error) {
			n, err := p.driver.Count(ctx, selector)
			return n > 0, err
		}
	case Visible:
		return func(ctx context.Context) (bool, error) {
			return p.driver.IsVisible(ctx, selector)
		}
	case Hidden:
		return func(ctx context.Context) (bool, error) {
			n, err := p.driver.Count(ctx, selector)
			if err != nil {
				return false, err
			}
			if n == 0 {
				return true, nil
			}
			visible, err := p.driver.IsVisible(ctx, selector)
			return !visible, err
		}
	}
	return nil
}

func (p *Page) timedOut(target, condition string, timeout, elapsed time.Duration) error {
	p.metrics.ObserveWaitTimeout(condition)
	err := &WaitTimeoutError{Target: target, Condition: condition, Timeout: timeout, Elapsed: elapsed}
	p.logger.Error("Wait timed out",
		zap.String("target", target),
		zap.String("condition", condition),
		zap.Duration("timeout", timeout),
		zap.Duration("elapsed", elapsed))
	return err
}

// WaitForElement polls until selector reaches state. A zero timeout uses the
// configured element wait.
func (p *Page) WaitForElement(ctx context.Context, selector string, state State, timeout time.Duration) error {
	pred := p.stateCheck(selector, state)
	if pred == nil {
		return fmt.Errorf("wait for element: unknown state %s", state)
	}
	timeout = p.elementTimeout(timeout)
	p.logger.Debug("Waiting for element",
		zap.String("selector", selector),
		zap.Stringer("state", state),
		zap.Duration("timeout", timeout))

	ok, elapsed, err := p.poll(ctx, state.String()+" "+selector, timeout, pred)
	if err != nil {
		return fmt.Errorf("waiting for '%s' to be %s: %w", selector, state, err)
	}
	if !ok {
		return p.timedOut(selector, state.String(), timeout, elapsed)
	}
	p.logger.Debug("Element reached state", zap.String("selector", selector), zap.Stringer("state", state))
	return nil
}

func (p *Page) WaitForElementVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.WaitForElement(ctx, selector, Visible, timeout)
}

func (p *Page) WaitForElementHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return p.WaitForElement(ctx, selector, Hidden, timeout)
}

// WaitForURL polls until the current URL matches pattern. Patterns use glob
// syntax where "**" spans path segments, so "**/dashboard" matches any URL
// ending in /dashboard. A zero timeout uses the page load timeout.
func (p *Page) WaitForURL(ctx context.Context, pattern string, timeout time.Duration) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("wait for url: invalid pattern %q", pattern)
	}
	timeout = p.pageLoadTimeout(timeout)
	p.logger.Info("Waiting for URL", zap.String("pattern", pattern))

	ok, elapsed, err := p.poll(ctx, "url "+pattern, timeout, func(ctx context.Context) (bool, error) {
		current, err := p.driver.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return urlMatches(pattern, current), nil
	})
	if err != nil {
		return fmt.Errorf("waiting for url '%s': %w", pattern, err)
	}
	if !ok {
		return p.timedOut(pattern, "url", timeout, elapsed)
	}
	p.logger.Debug("URL matched", zap.String("pattern", pattern))
	return nil
}

func urlMatches(pattern, url string) bool {
	if pattern == url {
		return true
	}
	if ok, _ := doublestar.Match(pattern, url); ok {
		return true
	}
	// Ignore query and fragment so "**/dashboard" matches "/dashboard?tab=1".
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		ok, _ := doublestar.Match(pattern, url[:i])
		return ok
	}
	return false
}

// WaitForLoadState blocks until the document reaches state. A zero timeout
// uses the page load timeout.
func (p *Page) WaitForLoadState(ctx context.Context, state LoadState, timeout time.Duration) error {
	if state == "" {
		state = LoadStateNetworkIdle
	}
	if !state.Valid() {
		return fmt.Errorf("wait for load state: unknown state %q", state)
	}
	timeout = p.pageLoadTimeout(timeout)
	p.logger.Info("Waiting for page load state", zap.String("state", string(state)))
	if err := p.driver.WaitForLoadState(ctx, state, timeout); err != nil {
		p.logger.Error("Load state wait failed", zap.String("state", string(state)), zap.Error(err))
		return fmt.Errorf("waiting for load state '%s': %w", state, err)
	}
	return nil
}

// WaitForText polls until text appears anywhere in the document body.
func (p *Page) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	timeout = p.elementTimeout(timeout)
	p.logger.Info("Waiting for text", zap.String("text", text))

	ok, elapsed, err := p.poll(ctx, "text "+text, timeout, func(ctx context.Context) (bool, error) {
		body, _, err := p.driver.TextContent(ctx, "body")
		if err != nil {
			return false, err
		}
		return strings.Contains(body, text), nil
	})
	if err != nil {
		return fmt.Errorf("waiting for text '%s': %w", text, err)
	}
	if !ok {
		return p.timedOut(text, "present", timeout, elapsed)
	}
	return nil
}

// -- Boolean waits. These never fail; a timeout or cancellation reports false. --

func (p *Page) boolWait(ctx context.Context, name string, timeout time.Duration, pred wait.Predicate) bool {
	timeout = p.elementTimeout(timeout)
	ok, _, err := p.poll(ctx, name, timeout, pred)
	if err != nil || !ok {
		p.logger.Warn("Condition timeout", zap.String("condition", name), zap.Duration("timeout", timeout), zap.Error(err))
		return false
	}
	return true
}

// WaitForElementCount reports whether exactly n elements match selector within timeout.
func (p *Page) WaitForElementCount(ctx context.Context, selector string, n int, timeout time.Duration) bool {
	return p.boolWait(ctx, fmt.Sprintf("count %s == %d", selector, n), timeout, func(ctx context.Context) (bool, error) {
		got, err := p.driver.Count(ctx, selector)
		return got == n, err
	})
}

// WaitForTextChange reports whether the element's text moved away from initial.
func (p *Page) WaitForTextChange(ctx context.Context, selector, initial string, timeout time.Duration) bool {
	return p.boolWait(ctx, "text change "+selector, timeout, func(ctx context.Context) (bool, error) {
		text, _, err := p.driver.TextContent(ctx, selector)
		return err == nil && text != initial, err
	})
}

// WaitForAttributeValue reports whether the attribute reached value.
func (p *Page) WaitForAttributeValue(ctx context.Context, selector, name, value string, timeout time.Duration) bool {
	return p.boolWait(ctx, fmt.Sprintf("%s[%s=%s]", selector, name, value), timeout, func(ctx context.Context) (bool, error) {
		got, ok, err := p.driver.Attribute(ctx, selector, name)
		return ok && got == value, err
	})
}

// WaitForAllVisible reports whether every selector is visible at the same poll.
func (p *Page) WaitForAllVisible(ctx context.Context, selectors []string, timeout time.Duration) bool {
	return p.boolWait(ctx, "all visible "+strings.Join(selectors, ", "), timeout, func(ctx context.Context) (bool, error) {
		for _, sel := range selectors {
			visible, err := p.driver.IsVisible(ctx, sel)
			if err != nil || !visible {
				return false, err
			}
		}
		return true, nil
	})
}
