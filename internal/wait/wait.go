// File: internal/wait/wait.go
// Package wait polls a condition until it holds or a time budget runs out.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the poll interval used when a caller has no configured value.
const DefaultInterval = 100 * time.Millisecond

// ErrNilPredicate is returned when Until is called without a predicate.
var ErrNilPredicate = errors.New("wait: predicate is nil")

// Spec is the time budget for a poll.
type Spec struct {
	// Timeout is the total budget. Zero means a single evaluation.
	Timeout time.Duration
	// Interval is the pause between evaluations.
	Interval time.Duration
}

// Validate reports whether s can drive a poll.
func (s Spec) Validate() error {
	if s.Timeout < 0 {
		return fmt.Errorf("wait: timeout must not be negative (got %s)", s.Timeout)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("wait: interval must be positive (got %s)", s.Interval)
	}
	return nil
}

// Predicate reports whether the awaited condition holds. An error is treated
// as "not yet".
type Predicate func(ctx context.Context) (bool, error)

type options struct {
	clock  Clock
	logger *zap.Logger
	name   string
}

// Option configures Until.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger used for predicate errors.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName labels log lines with the condition being awaited.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Until evaluates pred until it returns true or spec.Timeout has elapsed.
//
// The predicate is always evaluated at least once and a success returns
// without sleeping. After a failed evaluation the elapsed time is checked
// before sleeping, so the last evaluation happens no later than one interval
// past the deadline. The returned error is non-nil only for a nil predicate,
// an invalid spec, or a cancelled ctx.
func Until(ctx context.Context, spec Spec, pred Predicate, opts ...Option) (bool, error) {
	if pred == nil {
		return false, ErrNilPredicate
	}
	if err := spec.Validate(); err != nil {
		return false, err
	}

	o := options{clock: RealClock{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	start := o.clock.Now()
	for evaluation := 1; ; evaluation++ {
		ok, err := pred(ctx)
		if err != nil {
			o.logger.Debug("Condition check failed",
				zap.String("condition", o.name),
				zap.Int("evaluation", evaluation),
				zap.Error(err))
		} else if ok {
			return true, nil
		}

		if o.clock.Now().Sub(start) >= spec.Timeout {
			return false, nil
		}
		if err := o.clock.Sleep(ctx, spec.Interval); err != nil {
			return false, err
		}
	}
}
