// File: internal/page/errors.go
package page

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrWaitTimeout matches every *WaitTimeoutError.
	ErrWaitTimeout = errors.New("wait timed out")
	// ErrAssertion matches every *AssertionError.
	ErrAssertion = errors.New("assertion failed")
)

// WaitTimeoutError reports a condition that never held within its budget.
type WaitTimeoutError struct {
	// Target is the selector, URL pattern or text being awaited.
	Target string
	// Condition names what was awaited, e.g. "visible" or "url".
	Condition string
	Timeout   time.Duration
	Elapsed   time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %q to be %s (timeout %s)",
		e.Elapsed.Round(time.Millisecond), e.Target, e.Condition, e.Timeout)
}

func (e *WaitTimeoutError) Is(target error) bool { return target == ErrWaitTimeout }

// AssertionError reports an expected/actual mismatch from a page assertion.
type AssertionError struct {
	Assertion string
	Target    string
	Expected  string
	Actual    string
	// Message is the human readable description.
	Message string
	// Context is a caller supplied note. It prefixes the structured failure
	// text instead of Message.
	Context string
}

func (e *AssertionError) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.detail()
	}
	if e.Message != "" {
		return e.Message
	}
	return e.detail()
}

func (e *AssertionError) detail() string {
	return fmt.Sprintf("%s failed for %q: expected %q, got %q", e.Assertion, e.Target, e.Expected, e.Actual)
}

func (e *AssertionError) Is(target error) bool { return target == ErrAssertion }
