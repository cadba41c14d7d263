// Package backoff provides delay strategies used by task.Retry between
// attempts of a failed task operation. Strategies are stateless and safe
// for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed: attempt
// 1 is the first retry after the initial failure).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Func adapts an ordinary function to Strategy.
type Func func(attempt int) time.Duration

// Delay calls f(attempt).
func (f Func) Delay(attempt int) time.Duration { return f(attempt) }

// Constant waits the same interval before every attempt.
func Constant(interval time.Duration) Strategy {
	return Func(func(int) time.Duration { return interval })
}

// Exponential doubles the delay each attempt, capped at maxDelay when
// maxDelay is positive: min(initial * 2^(attempt-1), maxDelay).
func Exponential(initial, maxDelay time.Duration) Strategy {
	return Func(func(attempt int) time.Duration {
		return capped(initial, maxDelay, attempt)
	})
}

// Jittered returns a uniformly random delay in [0, d) where d is the
// Exponential delay for the attempt ("full jitter").
func Jittered(initial, maxDelay time.Duration) Strategy {
	return Func(func(attempt int) time.Duration {
		d := capped(initial, maxDelay, attempt)
		return time.Duration(rand.Float64() * float64(d)) //nolint:gosec // jitter does not need crypto rand
	})
}

// Default is the strategy task.Retry uses when none is given: jittered
// exponential from 100ms up to 10s.
func Default() Strategy {
	return Jittered(100*time.Millisecond, 10*time.Second)
}

func capped(initial, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
