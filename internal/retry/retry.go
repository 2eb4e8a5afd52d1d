// Package retry holds the single retry policy used for blob store connection attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"pdfslot/internal/config"
)

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Multiplier > 1 grows the delay exponentially; otherwise the delay is fixed.
	Multiplier float64
	MaxDelay   time.Duration
}

// FromConfig converts the environment retry settings into a Policy.
func FromConfig(c config.RetryConfig) Policy {
	return Policy{
		MaxAttempts: c.MaxAttempts,
		Delay:       c.Delay,
		Multiplier:  c.Multiplier,
	}
}

// Default is three attempts two seconds apart.
func Default() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// NotifyFunc is called after a failed attempt that will be retried.
type NotifyFunc func(attempt int, err error, next time.Duration)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (p Policy) backOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	return b
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), notify NotifyFunc) (T, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			notify(attempt, err, next)
		}))
	}

	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		return op(ctx)
	}, opts...)
}
