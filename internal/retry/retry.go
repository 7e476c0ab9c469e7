// Package retry is the bounded retry combinator shared by the pipeline stages.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation. The delay after failed attempt n
// (0-based) is Base * 2^n; there is no delay after the last attempt.
type Policy struct {
	MaxAttempts int
	Base        time.Duration

	// Timer overrides the wall clock, for tests.
	Timer backoff.Timer
	// OnRetry is called before each wait with the error and the upcoming delay.
	OnRetry func(err error, next time.Duration)
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the context ends,
// or MaxAttempts attempts have failed. It returns the last error.
func Do(ctx context.Context, p Policy, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.Base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.Base << uint(attempts),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
	return backoff.RetryNotifyWithTimer(op, b, p.OnRetry, p.Timer)
}
