package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware rejects actions that exceed a token-bucket rate.
// Build one with RateLimit.
type RateLimitMiddleware[S, A any] struct {
	id      string
	limiter *rate.Limiter
}

// RateLimit returns before-middleware admitting at most perSecond actions
// per second with the given burst. Rejected actions fail with
// ErrRateLimited, so the handler does not run and the error stage
// does. A burst below 1 is treated as 1.
func RateLimit[S, A any](id string, perSecond float64, burst int) *RateLimitMiddleware[S, A] {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitMiddleware[S, A]{
		id:      id,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// ID implements Middleware.
func (r *RateLimitMiddleware[S, A]) ID() string { return r.id }

// BeforeAction implements BeforeAction.
func (r *RateLimitMiddleware[S, A]) BeforeAction(_ context.Context, action A, _ S) error {
	if !r.limiter.Allow() {
		return fmt.Errorf("%w: %s", ErrRateLimited, ActionName(action))
	}
	return nil
}
