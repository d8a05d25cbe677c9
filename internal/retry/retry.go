// Package retry runs an operation a bounded number of times with
// exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures Do.
type Policy struct {
	MaxAttempts     int           // total attempts including the first one
	InitialInterval time.Duration // wait after the first failure
	Multiplier      float64       // growth factor of the wait, 2 when zero
	MaxInterval     time.Duration // upper bound of a single wait, unbounded when zero
}

// DefaultPolicy is three attempts waiting 1s and 2s in between.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		Multiplier:      2,
	}
}

// Delays returns the waits Do sleeps between attempts under this policy.
func (p Policy) Delays() []time.Duration {
	b := p.backOff()
	var out []time.Duration
	for i := 1; i < p.attempts(); i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.RandomizationFactor = 0
	bo.Multiplier = p.Multiplier
	if bo.Multiplier == 0 {
		bo.Multiplier = 2
	}
	bo.MaxInterval = p.MaxInterval
	if bo.MaxInterval == 0 {
		bo.MaxInterval = time.Duration(1<<63 - 1)
	}
	// Attempts are bounded by count, not by elapsed time.
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Permanent marks err as not worth retrying; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, wait time.Duration)

// Do calls op until it returns nil, returns a Permanent error, the attempts
// are exhausted or ctx is done. attempt is 1-based. It returns the number of
// attempts made and the last error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error, notify Notify) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		return op(ctx, attempts)
	}

	// WithMaxRetries treats zero as "no limit", so a single attempt needs StopBackOff.
	var b backoff.BackOff = &backoff.StopBackOff{}
	if p.attempts() > 1 {
		b = backoff.WithMaxRetries(p.backOff(), uint64(p.attempts()-1))
	}
	b = backoff.WithContext(b, ctx)

	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) {
			notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotify(operation, b, n)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return attempts, err
}
