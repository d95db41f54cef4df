// File: internal/page/actions.go
package page

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/pagekit/internal/retry"
	"go.uber.org/zap"
)

// Click waits for selector to be visible and clicks it, retrying the whole
// sequence up to the page's click budget (DefaultClickAttempts unless
// configured otherwise).
func (p *Page) Click(ctx context.Context, selector string) error {
	return p.ClickWithRetries(ctx, selector, p.clickAttempts)
}

// ClickWithRetries is Click with an explicit attempt budget. Each attempt
// resolves selector afresh, so an element replaced by a re-render between
// attempts is clicked in its new form. When every attempt fails the error of
// the last one is returned unchanged.
func (p *Page) ClickWithRetries(ctx context.Context, selector string, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	start := p.clock.Now()
	defer func() { p.metrics.ObserveActionDuration("click", p.clock.Now().Sub(start)) }()

	return retry.Do(ctx, p.clickPolicy(attempts), func(ctx context.Context) error {
		p.logger.Info("Clicking element", zap.String("selector", selector))
		err := p.WaitForElementVisible(ctx, selector, 0)
		if err == nil {
			err = p.driver.Click(ctx, selector)
		}
		p.metrics.ObserveAttempt("click", err)
		if err == nil {
			p.logger.Debug("Element clicked", zap.String("selector", selector))
		}
		return err
	},
		retry.WithClock(p.clock),
		retry.WithLogger(p.logger),
		retry.WithName("click "+selector),
		retry.WithOnRetry(func(int, error) { p.metrics.ObserveRetry("click") }),
	)
}

// TypeText waits for selector, optionally clears it, and types text with a
// short per-key delay. It runs once; failures are returned immediately.
func (p *Page) TypeText(ctx context.Context, selector, text string, clearFirst bool) error {
	p.logger.Info("Typing text in element", zap.String("selector", selector))
	if err := p.WaitForElementVisible(ctx, selector, 0); err != nil {
		return err
	}
	if clearFirst {
		if err := p.driver.Fill(ctx, selector, ""); err != nil {
			p.metrics.ObserveAttempt("type", err)
			return fmt.Errorf("clearing field '%s' failed: %w", selector, err)
		}
		p.logger.Debug("Cleared field", zap.String("selector", selector))
	}
	err := p.driver.Type(ctx, selector, text, TypeDelay)
	p.metrics.ObserveAttempt("type", err)
	if err != nil {
		return fmt.Errorf("type action failed for selector '%s': %w", selector, err)
	}
	p.logger.Debug("Text typed", zap.String("selector", selector), zap.Int("length", len(text)))
	return nil
}

// FillText replaces the field value in one step.
func (p *Page) FillText(ctx context.Context, selector, text string) error {
	p.logger.Info("Filling text in element", zap.String("selector", selector))
	if err := p.WaitForElementVisible(ctx, selector, 0); err != nil {
		return err
	}
	err := p.driver.Fill(ctx, selector, text)
	p.metrics.ObserveAttempt("fill", err)
	if err != nil {
		return fmt.Errorf("fill action failed for selector '%s': %w", selector, err)
	}
	return nil
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	p.logger.Info("Hovering over element", zap.String("selector", selector))
	if err := p.WaitForElementVisible(ctx, selector, 0); err != nil {
		return err
	}
	if err := p.driver.Hover(ctx, selector); err != nil {
		return fmt.Errorf("hover action failed for selector '%s': %w", selector, err)
	}
	return nil
}

// ScrollToElement scrolls the first match into the viewport. The element only
// has to be attached; it may be off screen.
func (p *Page) ScrollToElement(ctx context.Context, selector string) error {
	p.logger.Info("Scrolling to element", zap.String("selector", selector))
	if err := p.WaitForElement(ctx, selector, Attached, 0); err != nil {
		return err
	}
	if err := p.driver.ScrollIntoView(ctx, selector); err != nil {
		return fmt.Errorf("scroll action failed for selector '%s': %w", selector, err)
	}
	return nil
}

func (p *Page) SelectOption(ctx context.Context, selector, value string) error {
	p.logger.Info("Selecting option in dropdown", zap.String("selector", selector), zap.String("value", value))
	if err := p.WaitForElementVisible(ctx, selector, 0); err != nil {
		return err
	}
	if err := p.driver.SelectOption(ctx, selector, value); err != nil {
		return fmt.Errorf("select action failed for selector '%s': %w", selector, err)
	}
	return nil
}

// CheckCheckbox clicks the checkbox only if it is not already checked.
func (p *Page) CheckCheckbox(ctx context.Context, selector string) error {
	return p.setChecked(ctx, selector, true)
}

// UncheckCheckbox clicks the checkbox only if it is currently checked.
func (p *Page) UncheckCheckbox(ctx context.Context, selector string) error {
	return p.setChecked(ctx, selector, false)
}

func (p *Page) setChecked(ctx context.Context, selector string, want bool) error {
	p.logger.Info("Setting checkbox", zap.String("selector", selector), zap.Bool("checked", want))
	if err := p.WaitForElementVisible(ctx, selector, 0); err != nil {
		return err
	}
	if p.IsChecked(ctx, selector) == want {
		return nil
	}
	return p.Click(ctx, selector)
}
