// File: internal/page/reads.go
package page

import (
	"context"

	"go.uber.org/zap"
)

// GetText waits for selector to be visible and returns its text content.
// It returns "" when the wait fails, the driver errors or reports no text.
func (p *Page) GetText(ctx context.Context, selector string) string {
	p.logger.Info("Getting text from element", zap.String("selector", selector))
	if err := p.WaitForElementVisible(ctx, selector, 0); err != nil {
		p.logger.Debug("Text read skipped", zap.String("selector", selector), zap.Error(err))
		return ""
	}
	text, ok, err := p.driver.TextContent(ctx, selector)
	if err != nil || !ok {
		p.logger.Debug("No text content", zap.String("selector", selector), zap.Error(err))
		return ""
	}
	return text
}

// GetAttribute waits for selector to be attached and returns the attribute
// value, or "" under the same conditions as GetText.
func (p *Page) GetAttribute(ctx context.Context, selector, name string) string {
	p.logger.Info("Getting attribute from element", zap.String("selector", selector), zap.String("attribute", name))
	if err := p.WaitForElement(ctx, selector, Attached, 0); err != nil {
		p.logger.Debug("Attribute read skipped", zap.String("selector", selector), zap.Error(err))
		return ""
	}
	value, ok, err := p.driver.Attribute(ctx, selector, name)
	if err != nil || !ok {
		p.logger.Debug("No attribute value", zap.String("selector", selector), zap.String("attribute", name), zap.Error(err))
		return ""
	}
	return value
}

// -- Probes. Any driver error reads as false. --

func (p *Page) IsVisible(ctx context.Context, selector string) bool {
	p.logger.Debug("Checking if element visible", zap.String("selector", selector))
	visible, err := p.driver.IsVisible(ctx, selector)
	return err == nil && visible
}

func (p *Page) IsElementPresent(ctx context.Context, selector string) bool {
	p.logger.Debug("Checking if element present", zap.String("selector", selector))
	n, err := p.driver.Count(ctx, selector)
	return err == nil && n > 0
}

func (p *Page) IsEnabled(ctx context.Context, selector string) bool {
	p.logger.Debug("Checking if element enabled", zap.String("selector", selector))
	enabled, err := p.driver.IsEnabled(ctx, selector)
	return err == nil && enabled
}

func (p *Page) IsChecked(ctx context.Context, selector string) bool {
	p.logger.Debug("Checking if element checked", zap.String("selector", selector))
	checked, err := p.driver.IsChecked(ctx, selector)
	return err == nil && checked
}

// Count returns the number of matches, or 0 on driver error.
func (p *Page) Count(ctx context.Context, selector string) int {
	n, err := p.driver.Count(ctx, selector)
	if err != nil {
		return 0
	}
	return n
}
