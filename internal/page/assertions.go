// File: internal/page/assertions.go
package page

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// fail records and returns an assertion failure.
func (p *Page) fail(e *AssertionError) error {
	p.metrics.ObserveAssertionFailure(e.Assertion)
	p.logger.Error(e.Error(),
		zap.String("assertion", e.Assertion),
		zap.String("target", e.Target),
		zap.String("expected", e.Expected),
		zap.String("actual", e.Actual))
	return e
}

// AssertElementVisible fails unless selector is visible right now. An
// optional message prefixes the failure text, which still names the
// selector with the expected and actual state.
func (p *Page) AssertElementVisible(ctx context.Context, selector string, message ...string) error {
	p.logger.Info("Asserting element visible", zap.String("selector", selector))
	if p.IsVisible(ctx, selector) {
		return nil
	}
	e := &AssertionError{
		Assertion: "element_visible",
		Target:    selector,
		Expected:  "visible",
		Actual:    "not visible",
		Message:   "Element not visible: " + selector,
	}
	if len(message) > 0 {
		e.Context = message[0]
	}
	return p.fail(e)
}

// AssertTextContains fails unless the element text contains expected.
func (p *Page) AssertTextContains(ctx context.Context, selector, expected string) error {
	p.logger.Info("Asserting text contains", zap.String("selector", selector), zap.String("expected", expected))
	actual := p.GetText(ctx, selector)
	if strings.Contains(actual, expected) {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "text_contains",
		Target:    selector,
		Expected:  expected,
		Actual:    actual,
		Message:   fmt.Sprintf("Expected '%s' in '%s'", expected, actual),
	})
}

// AssertTextExact fails unless the trimmed element text equals expected.
func (p *Page) AssertTextExact(ctx context.Context, selector, expected string) error {
	p.logger.Info("Asserting exact text", zap.String("selector", selector), zap.String("expected", expected))
	actual := strings.TrimSpace(p.GetText(ctx, selector))
	if actual == expected {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "text_exact",
		Target:    selector,
		Expected:  expected,
		Actual:    actual,
		Message:   fmt.Sprintf("Expected text '%s', got '%s'", expected, actual),
	})
}

func (p *Page) AssertElementEnabled(ctx context.Context, selector string) error {
	p.logger.Info("Asserting element enabled", zap.String("selector", selector))
	if p.IsEnabled(ctx, selector) {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "element_enabled",
		Target:    selector,
		Expected:  "enabled",
		Actual:    "not enabled",
		Message:   "Element not enabled: " + selector,
	})
}

// AssertElementDisabled requires the element to exist and be disabled.
func (p *Page) AssertElementDisabled(ctx context.Context, selector string) error {
	p.logger.Info("Asserting element disabled", zap.String("selector", selector))
	if p.IsElementPresent(ctx, selector) && !p.IsEnabled(ctx, selector) {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "element_disabled",
		Target:    selector,
		Expected:  "disabled",
		Actual:    "not disabled",
		Message:   fmt.Sprintf("Element '%s' is not disabled", selector),
	})
}

func (p *Page) AssertElementChecked(ctx context.Context, selector string) error {
	p.logger.Info("Asserting element checked", zap.String("selector", selector))
	if p.IsChecked(ctx, selector) {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "element_checked",
		Target:    selector,
		Expected:  "checked",
		Actual:    "unchecked",
		Message:   fmt.Sprintf("Element '%s' is not checked", selector),
	})
}

// AssertElementUnchecked requires the element to exist and be unchecked.
func (p *Page) AssertElementUnchecked(ctx context.Context, selector string) error {
	p.logger.Info("Asserting element unchecked", zap.String("selector", selector))
	if p.IsElementPresent(ctx, selector) && !p.IsChecked(ctx, selector) {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "element_unchecked",
		Target:    selector,
		Expected:  "unchecked",
		Actual:    "checked or absent",
		Message:   fmt.Sprintf("Element '%s' is checked", selector),
	})
}

// AssertElementHasClass fails unless className is one of the element's classes.
func (p *Page) AssertElementHasClass(ctx context.Context, selector, className string) error {
	p.logger.Info("Asserting element class", zap.String("selector", selector), zap.String("class", className))
	classes, _, err := p.driver.Attribute(ctx, selector, "class")
	if err != nil {
		return p.fail(&AssertionError{
			Assertion: "element_has_class",
			Target:    selector,
			Expected:  className,
			Actual:    err.Error(),
			Message:   fmt.Sprintf("Could not read classes of '%s': %v", selector, err),
		})
	}
	for _, c := range strings.Fields(classes) {
		if c == className {
			return nil
		}
	}
	return p.fail(&AssertionError{
		Assertion: "element_has_class",
		Target:    selector,
		Expected:  className,
		Actual:    classes,
		Message:   fmt.Sprintf("Element '%s' classes '%s' do not contain '%s'", selector, classes, className),
	})
}

func (p *Page) AssertElementCount(ctx context.Context, selector string, expected int) error {
	p.logger.Info("Asserting element count", zap.String("selector", selector), zap.Int("expected", expected))
	actual := p.Count(ctx, selector)
	if actual == expected {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "element_count",
		Target:    selector,
		Expected:  strconv.Itoa(expected),
		Actual:    strconv.Itoa(actual),
		Message:   fmt.Sprintf("Expected %d elements '%s', but found %d", expected, selector, actual),
	})
}

// AssertURLContains fails unless the current URL contains expected.
func (p *Page) AssertURLContains(ctx context.Context, expected string) error {
	p.logger.Info("Asserting URL contains", zap.String("expected", expected))
	current := p.CurrentURL(ctx)
	if strings.Contains(current, expected) {
		return nil
	}
	return p.fail(&AssertionError{
		Assertion: "url_contains",
		Target:    "url",
		Expected:  expected,
		Actual:    current,
		Message:   fmt.Sprintf("Expected URL to contain '%s', got '%s'", expected, current),
	})
}
