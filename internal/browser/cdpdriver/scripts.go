// internal/browser/cdpdriver/scripts.go
package cdpdriver

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// lookupResult is what every element script returns. Found is false when no
// element matched; Value is nil when the property or attribute is null.
type lookupResult struct {
	Found bool    `json:"found"`
	Value *string `json:"value"`
	Flag  bool    `json:"flag"`
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	out, err := jsoniter.MarshalToString(s)
	if err != nil {
		// Marshaling a Go string cannot fail.
		panic(err)
	}
	return out
}

// elementScript wraps body in an IIFE with `el` bound to the first match.
// body must evaluate to an object literal shaped like lookupResult.
func elementScript(selector, body string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) { return {found: false, value: null, flag: false}; }
  return %s;
})()`, jsString(selector), body)
}

func visibleScript(selector string) string {
	return elementScript(selector, `(() => {
    const style = window.getComputedStyle(el);
    if (style.visibility === 'hidden' || style.display === 'none') {
      return {found: true, value: null, flag: false};
    }
    const rect = el.getBoundingClientRect();
    return {found: true, value: null, flag: rect.width > 0 && rect.height > 0};
  })()`)
}

func enabledScript(selector string) string {
	return elementScript(selector, `{found: true, value: null, flag: !el.disabled && !el.closest('fieldset[disabled]')}`)
}

func checkedScript(selector string) string {
	return elementScript(selector, `{found: true, value: null, flag: !!el.checked}`)
}

func textScript(selector string) string {
	return elementScript(selector, `{found: true, value: el.textContent, flag: false}`)
}

func attributeScript(selector, name string) string {
	return elementScript(selector, fmt.Sprintf(`{found: true, value: el.getAttribute(%s), flag: false}`, jsString(name)))
}

func selectScript(selector, value string) string {
	return elementScript(selector, fmt.Sprintf(`(() => {
    el.value = %s;
    el.dispatchEvent(new Event('input', {bubbles: true}));
    el.dispatchEvent(new Event('change', {bubbles: true}));
    return {found: true, value: el.value, flag: el.value === %s};
  })()`, jsString(value), jsString(value)))
}

// loadProbeScript reports the ready state and the number of resource
// entries, which stops growing once the network goes quiet.
const loadProbeScript = `({state: document.readyState, resources: performance.getEntriesByType('resource').length})`

type loadProbe struct {
	State     string `json:"state"`
	Resources int    `json:"resources"`
}
