// internal/browser/cdpdriver/context.go
package cdpdriver

import (
	"context"
)

// combineContext derives a context from session that is also cancelled when op
// is. Values, including the CDP target, come from session; op only
// contributes its deadline and cancellation.
func combineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)
	if deadline, ok := op.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}
	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
