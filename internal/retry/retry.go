// File: internal/retry/retry.go
// Package retry runs a fallible action under an explicit, inspectable policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xkilldash9x/pagekit/internal/wait"
	"go.uber.org/zap"
)

// Policy governs how many times an action runs and how long to pause between failures.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the pause after the first failure.
	Delay time.Duration
	// BackoffMultiplier grows the delay after each further failure. Zero means 1.0.
	BackoffMultiplier float64
	// AttemptTimeout, if positive, bounds each attempt with its own deadline.
	AttemptTimeout time.Duration
	// RetryIf, if set, decides whether a failure is retried. Errors it
	// rejects are returned immediately.
	RetryIf func(error) bool
}

// DefaultPolicy is three attempts two seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second, BackoffMultiplier: 1.0}
}

// Fixed returns a policy of n attempts with a constant delay.
func Fixed(n int, delay time.Duration) Policy {
	return Policy{MaxAttempts: n, Delay: delay, BackoffMultiplier: 1.0}
}

// Validate reports whether the policy can drive a retry loop.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be at least 1 (got %d)", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("retry: delay must not be negative (got %s)", p.Delay)
	}
	if p.BackoffMultiplier != 0 && p.BackoffMultiplier < 1.0 {
		return fmt.Errorf("retry: backoff multiplier must be >= 1.0 (got %g)", p.BackoffMultiplier)
	}
	if p.AttemptTimeout < 0 {
		return fmt.Errorf("retry: attempt timeout must not be negative (got %s)", p.AttemptTimeout)
	}
	return nil
}

// DelayAfter is the pause between attempt k and attempt k+1 (k is 1-based):
// Delay × BackoffMultiplier^(k−1).
func (p Policy) DelayAfter(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	mult := p.BackoffMultiplier
	if mult == 0 {
		mult = 1.0
	}
	d := float64(p.Delay) * math.Pow(mult, float64(k-1))
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// WithRetryIf returns a copy of p that only retries errors matching fn.
func (p Policy) WithRetryIf(fn func(error) bool) Policy {
	p.RetryIf = fn
	return p
}

// WithAttemptTimeout returns a copy of p with a per-attempt deadline.
func (p Policy) WithAttemptTimeout(d time.Duration) Policy {
	p.AttemptTimeout = d
	return p
}

// On returns a RetryIf predicate matching any of targets via errors.Is.
func On(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

type options struct {
	logger  *zap.Logger
	clock   wait.Clock
	name    string
	onRetry func(attempt int, err error)
}

// Option configures Do and DoValue.
type Option func(*options)

// WithLogger sets the logger for attempt and retry records.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the wall clock used for delays.
func WithClock(c wait.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithName labels log lines with the operation being retried.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithOnRetry registers a callback invoked before each retry sleep.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do runs action until it succeeds or the policy is exhausted. The error from
// the final attempt is returned as is.
func Do(ctx context.Context, p Policy, action func(ctx context.Context) error, opts ...Option) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	}, opts...)
	return err
}

// DoValue is Do for actions that produce a value.
func DoValue[T any](ctx context.Context, p Policy, action func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	if action == nil {
		return zero, errors.New("retry: action is nil")
	}
	if err := p.Validate(); err != nil {
		return zero, err
	}

	o := options{logger: zap.NewNop(), clock: wait.RealClock{}, name: "action"}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.With(zap.String("operation", o.name))

	for attempt := 1; ; attempt++ {
		log.Debug("Attempting operation", zap.Int("attempt", attempt), zap.Int("max_attempts", p.MaxAttempts))

		v, err := runAttempt(ctx, p.AttemptTimeout, action)
		if err == nil {
			if attempt > 1 {
				log.Info("Operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return v, nil
		}

		if p.RetryIf != nil && !p.RetryIf(err) {
			log.Debug("Error is not retryable", zap.Int("attempt", attempt), zap.Error(err))
			return zero, err
		}
		if attempt >= p.MaxAttempts {
			log.Error("All attempts failed", zap.Int("attempts", attempt), zap.Error(err))
			return zero, err
		}

		delay := p.DelayAfter(attempt)
		log.Warn("Attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))
		if o.onRetry != nil {
			o.onRetry(attempt, err)
		}

		if serr := o.clock.Sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("%w (last error: %v)", serr, err)
		}
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, action func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return action(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return action(attemptCtx)
}
