// Package retry runs a call repeatedly with exponential backoff, stopping
// early on errors that report themselves as permanent.
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// AttemptTimeout bounds each try. Zero means no per-try deadline.
	AttemptTimeout time.Duration
	InitialWait    time.Duration
	MaxWait        time.Duration
	Multiplier     float64
}

// DefaultPolicy is three tries, 8s each, waiting 1s then 2s between them.
var DefaultPolicy = Policy{
	Attempts:       3,
	AttemptTimeout: 8 * time.Second,
	InitialWait:    time.Second,
	MaxWait:        4 * time.Second,
	Multiplier:     2,
}

// Retryable is implemented by errors that know whether a retry can help.
type Retryable interface {
	Retryable() bool
}

// Do calls fn until it succeeds, returns a permanent error, runs out of
// attempts or ctx ends. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := call(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts-1 {
			break
		}

		wait := Backoff(p, attempt)
		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"wait":    wait,
		}).WithError(err).Debug("Retrying")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		}
	}
	return zero, lastErr
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Backoff is the wait after the given zero-based attempt.
func Backoff(p Policy, attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := time.Duration(float64(p.InitialWait) * math.Pow(mult, float64(attempt)))
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	return wait
}

// IsRetryable honours a Retryable implementation anywhere in the chain and
// otherwise retries only network and deadline failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
