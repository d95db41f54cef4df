// File: internal/page/pagetest/fake.go
// Package pagetest provides an in-memory page.Driver for tests.
package pagetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/pagekit/internal/page"
)

// ErrNoElement is returned by actions on selectors the fake does not know.
var ErrNoElement = errors.New("pagetest: no element matches selector")

// Element is the fake's view of the first node matching a selector.
type Element struct {
	Visible bool
	Enabled bool
	Checked bool
	// Checkable elements toggle Checked when clicked.
	Checkable bool
	// Text is the text content. Nil reads as a null value.
	Text *string
	// Attrs holds attribute values. Missing keys read as null.
	Attrs map[string]string
	// Count is the number of matches. Zero is treated as one.
	Count int

	handle int
}

// Handle identifies the node instance. Replace assigns a new one.
func (e Element) Handle() int { return e.handle }

// Str is a helper for Element.Text.
func Str(s string) *string { return &s }

// FakeDriver is a scriptable page.Driver. All methods are safe for concurrent use.
type FakeDriver struct {
	mu         sync.Mutex
	elements   map[string]*Element
	nextHandle int
	url        string
	title      string
	content    string
	history    []string
	historyPos int

	failAll     error
	clickErrs   map[string][]error
	clicked     []ClickRecord
	calls       []string
	scripts     []string
	screenshots int
	cookies     bool

	// OnClick runs after a successful click with the lock released.
	OnClick func(d *FakeDriver, selector string) error
	// OnProbe runs before every Count and IsVisible with the lock released.
	OnProbe func(d *FakeDriver, selector string)
	// EvalResult is decoded into Evaluate's out argument when set.
	EvalResult any
	// LoadStateErr is returned by WaitForLoadState when set.
	LoadStateErr error
}

// ClickRecord is one successful click.
type ClickRecord struct {
	Selector string
	Handle   int
}

var _ page.Driver = (*FakeDriver)(nil)

// NewFakeDriver returns an empty document at about:blank.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		elements:  make(map[string]*Element),
		clickErrs: make(map[string][]error),
		url:       "about:blank",
		history:   []string{"about:blank"},
		cookies:   true,
	}
}

// -- Scripting --

// Set installs or overwrites the element for selector with a fresh handle.
func (d *FakeDriver) Set(selector string, e Element) *FakeDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextHandle++
	e.handle = d.nextHandle
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	d.elements[selector] = &e
	return d
}

// Visible installs a visible, enabled element with the given text.
func (d *FakeDriver) Visible(selector, text string) *FakeDriver {
	return d.Set(selector, Element{Visible: true, Enabled: true, Text: Str(text)})
}

// Update mutates the element for selector in place, keeping its handle.
func (d *FakeDriver) Update(selector string, fn func(e *Element)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.elements[selector]; ok {
		fn(e)
	}
}

// Replace swaps the node behind selector for a copy with a new handle, as a
// re-render would. It returns the new handle.
func (d *FakeDriver) Replace(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[selector]
	if !ok {
		return 0
	}
	cp := *e
	d.nextHandle++
	cp.handle = d.nextHandle
	d.elements[selector] = &cp
	return cp.handle
}

// Remove detaches selector.
func (d *FakeDriver) Remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, selector)
}

// Element returns a copy of the element for selector.
func (d *FakeDriver) Element(selector string) (Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[selector]
	if !ok {
		return Element{}, false
	}
	return *e, true
}

// FailClicks queues errors returned by the next clicks on selector, in order.
func (d *FakeDriver) FailClicks(selector string, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clickErrs[selector] = append(d.clickErrs[selector], errs...)
}

// FailAll makes every driver call return err. Pass nil to restore.
func (d *FakeDriver) FailAll(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAll = err
}

// SetURL changes the current URL without touching history.
func (d *FakeDriver) SetURL(u string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = u
}

func (d *FakeDriver) SetTitle(t string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = t
}

func (d *FakeDriver) SetContent(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = html
}

// -- Inspection --

// Clicks returns every successful click in order.
func (d *FakeDriver) Clicks() []ClickRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ClickRecord(nil), d.clicked...)
}

// Calls returns "Method selector" entries for every driver call.
func (d *FakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallCount counts calls whose entry starts with prefix.
func (d *FakeDriver) CallCount(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Scripts returns every evaluated expression.
func (d *FakeDriver) Scripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scripts...)
}

// HasCookies reports whether ClearCookies has not been called yet.
func (d *FakeDriver) HasCookies() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cookies
}

// Value returns the "value" attribute, where Fill and Type write.
func (d *FakeDriver) Value(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.elements[selector]; ok {
		return e.Attrs["value"]
	}
	return ""
}

// -- page.Driver --

// begin records the call and returns the forced failure, if any. Callers hold no lock.
func (d *FakeDriver) begin(ctx context.Context, call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.failAll
}

func (d *FakeDriver) probe(selector string) {
	if hook := d.OnProbe; hook != nil {
		hook(d, selector)
	}
}

func (d *FakeDriver) lookup(selector string) (*Element, error) {
	e, ok := d.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return e, nil
}

func (d *FakeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.begin(ctx, "Navigate "+url); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history[:d.historyPos+1], url)
	d.historyPos = len(d.history) - 1
	d.url = url
	return nil
}

func (d *FakeDriver) Reload(ctx context.Context) error {
	return d.begin(ctx, "Reload")
}

func (d *FakeDriver) Back(ctx context.Context) error {
	if err := d.begin(ctx, "Back"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.historyPos > 0 {
		d.historyPos--
		d.url = d.history[d.historyPos]
	}
	return nil
}

func (d *FakeDriver) Forward(ctx context.Context) error {
	if err := d.begin(ctx, "Forward"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.historyPos < len(d.history)-1 {
		d.historyPos++
		d.url = d.history[d.historyPos]
	}
	return nil
}

func (d *FakeDriver) WaitForLoadState(ctx context.Context, state page.LoadState, _ time.Duration) error {
	if err := d.begin(ctx, "WaitForLoadState "+string(state)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.LoadStateErr
}

func (d *FakeDriver) CurrentURL(ctx context.Context) (string, error) {
	if err := d.begin(ctx, "CurrentURL"); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *FakeDriver) Title(ctx context.Context) (string, error) {
	if err := d.begin(ctx, "Title"); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *FakeDriver) Content(ctx context.Context) (string, error) {
	if err := d.begin(ctx, "Content"); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content, nil
}

func (d *FakeDriver) Count(ctx context.Context, selector string) (int, error) {
	if err := d.begin(ctx, "Count "+selector); err != nil {
		return 0, err
	}
	d.probe(selector)
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[selector]
	if !ok {
		return 0, nil
	}
	if e.Count > 0 {
		return e.Count, nil
	}
	return 1, nil
}

func (d *FakeDriver) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := d.begin(ctx, "IsVisible "+selector); err != nil {
		return false, err
	}
	d.probe(selector)
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[selector]
	return ok && e.Visible, nil
}

func (d *FakeDriver) IsEnabled(ctx context.Context, selector string) (bool, error) {
	if err := d.begin(ctx, "IsEnabled "+selector); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(selector)
	if err != nil {
		return false, err
	}
	return e.Enabled, nil
}

func (d *FakeDriver) IsChecked(ctx context.Context, selector string) (bool, error) {
	if err := d.begin(ctx, "IsChecked "+selector); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(selector)
	if err != nil {
		return false, err
	}
	return e.Checked, nil
}

func (d *FakeDriver) Click(ctx context.Context, selector string) error {
	if err := d.begin(ctx, "Click "+selector); err != nil {
		return err
	}
	d.mu.Lock()
	if queued := d.clickErrs[selector]; len(queued) > 0 {
		d.clickErrs[selector] = queued[1:]
		d.mu.Unlock()
		return queued[0]
	}
	e, err := d.lookup(selector)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if e.Checkable {
		e.Checked = !e.Checked
	}
	d.clicked = append(d.clicked, ClickRecord{Selector: selector, Handle: e.handle})
	hook := d.OnClick
	d.mu.Unlock()

	if hook != nil {
		return hook(d, selector)
	}
	return nil
}

func (d *FakeDriver) Fill(ctx context.Context, selector, value string) error {
	if err := d.begin(ctx, "Fill "+selector); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(selector)
	if err != nil {
		return err
	}
	e.Attrs["value"] = value
	return nil
}

func (d *FakeDriver) Type(ctx context.Context, selector, text string, _ time.Duration) error {
	if err := d.begin(ctx, "Type "+selector); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(selector)
	if err != nil {
		return err
	}
	e.Attrs["value"] += text
	return nil
}

func (d *FakeDriver) Hover(ctx context.Context, selector string) error {
	if err := d.begin(ctx, "Hover "+selector); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookup(selector)
	return err
}

func (d *FakeDriver) ScrollIntoView(ctx context.Context, selector string) error {
	if err := d.begin(ctx, "ScrollIntoView "+selector); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookup(selector)
	return err
}

func (d *FakeDriver) SelectOption(ctx context.Context, selector, value string) error {
	if err := d.begin(ctx, "SelectOption "+selector); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(selector)
	if err != nil {
		return err
	}
	e.Attrs["value"] = value
	return nil
}

func (d *FakeDriver) TextContent(ctx context.Context, selector string) (string, bool, error) {
	if err := d.begin(ctx, "TextContent "+selector); err != nil {
		return "", false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(selector)
	if err != nil {
		return "", false, err
	}
	if e.Text == nil {
		return "", false, nil
	}
	return *e.Text, true, nil
}

func (d *FakeDriver) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	if err := d.begin(ctx, "Attribute "+selector); err != nil {
		return "", false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(selector)
	if err != nil {
		return "", false, err
	}
	v, ok := e.Attrs[name]
	return v, ok, nil
}

// pngHeader is enough of a PNG for tests that only check the file exists.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (d *FakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.begin(ctx, "Screenshot"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screenshots++
	return append([]byte(nil), pngHeader...), nil
}

func (d *FakeDriver) ClearCookies(ctx context.Context) error {
	if err := d.begin(ctx, "ClearCookies"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = false
	return nil
}

func (d *FakeDriver) Evaluate(ctx context.Context, expression string, out any) error {
	if err := d.begin(ctx, "Evaluate"); err != nil {
		return err
	}
	d.mu.Lock()
	d.scripts = append(d.scripts, expression)
	result := d.EvalResult
	d.mu.Unlock()

	if out == nil || result == nil {
		return nil
	}
	raw, err := jsoniter.Marshal(result)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(raw, out)
}
