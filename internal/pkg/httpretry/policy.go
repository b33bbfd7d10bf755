package httpretry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffFunc returns how long to wait after the given failed attempt
// (1 for the first failure).
type BackoffFunc func(failedAttempt int) time.Duration

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of requests made before giving up.
	MaxAttempts int
	Backoff     BackoffFunc
}

// DefaultPolicy is five attempts with 1s doubling backoff capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Backoff:     ExponentialBackoff(time.Second, 30*time.Second),
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff(time.Second, 30*time.Second)
	}
	return p
}

// ExponentialBackoff doubles base for every failure: base, 2*base, 4*base...
// capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(failedAttempt int) time.Duration {
		if failedAttempt < 1 {
			failedAttempt = 1
		}
		d := float64(base) * math.Pow(2, float64(failedAttempt-1))
		if max > 0 && d > float64(max) {
			d = float64(max)
		}
		return time.Duration(d)
	}
}

// WithJitter scales each delay by a random factor in [1-frac, 1].
func WithJitter(fn BackoffFunc, frac float64) BackoffFunc {
	if frac <= 0 {
		return fn
	}
	if frac > 1 {
		frac = 1
	}
	return func(failedAttempt int) time.Duration {
		d := float64(fn(failedAttempt))
		return time.Duration(d * (1 - frac*rand.Float64()))
	}
}

// Sleeper waits between attempts. Tests swap in a fake clock.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
