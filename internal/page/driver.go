// File: internal/page/driver.go
package page

import (
	"context"
	"fmt"
	"time"
)

// Driver is the browser capability set the façade is built on. Selectors are
// resolved by the driver on every call; implementations must not cache
// element handles between calls.
type Driver interface {
	// Navigation
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	WaitForLoadState(ctx context.Context, state LoadState, timeout time.Duration) error

	// Document state
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)

	// Element probes. Count returns 0 when nothing matches.
	Count(ctx context.Context, selector string) (int, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	IsEnabled(ctx context.Context, selector string) (bool, error)
	IsChecked(ctx context.Context, selector string) (bool, error)

	// Element actions
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Type(ctx context.Context, selector, text string, delay time.Duration) error
	Hover(ctx context.Context, selector string) error
	ScrollIntoView(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error

	// Element reads. ok is false when the driver reports no value.
	TextContent(ctx context.Context, selector string) (text string, ok bool, err error)
	Attribute(ctx context.Context, selector, name string) (value string, ok bool, err error)

	// Session
	Screenshot(ctx context.Context) ([]byte, error)
	ClearCookies(ctx context.Context) error
	// Evaluate runs a script in the page. If out is non-nil the result is decoded into it.
	Evaluate(ctx context.Context, expression string, out any) error
}

// State is the condition an element wait resolves on.
type State int

const (
	// Attached means at least one element matches the selector.
	Attached State = iota
	// Visible means the first match is rendered with a non-empty box.
	Visible
	// Hidden means no element matches or the first match is not visible.
	Hidden
)

func (s State) String() string {
	switch s {
	case Attached:
		return "attached"
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LoadState is a document lifecycle milestone.
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Valid reports whether s is a known load state.
func (s LoadState) Valid() bool {
	switch s {
	case LoadStateLoad, LoadStateDOMContentLoaded, LoadStateNetworkIdle:
		return true
	}
	return false
}
