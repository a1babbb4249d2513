package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles repeated work using the token bucket algorithm.
//
// This wraps golang.org/x/time/rate to provide:
//   - Token bucket rate limiting (allows bursts while enforcing a sustained rate)
//   - Context-aware waiting (respects cancellation)
//   - Thread-safe operation
//
// ForgeFS uses it to bound how often the continual metadata tree is rebuilt
// in response to filesystem event storms: each rebuild consumes one token, so
// a flood of change notifications degrades into at most the configured number
// of rebuilds per second.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing eventsPerSecond sustained operations
// with the given burst capacity.
//
// Special cases:
//   - eventsPerSecond = 0: no rate limiting (effectively unlimited)
//   - burst < 1: clamped to 1 so Wait can ever succeed
func New(eventsPerSecond float64, burst int) *RateLimiter {
	if eventsPerSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

// Allow reports whether one operation may proceed right now, consuming a
// token if so. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
//
// Returns nil once a token was acquired, or the context's error if it was
// cancelled (or its deadline exceeded) first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate. Zero or negative removes the limit.
//
// Safe to call concurrently with Allow and Wait.
func (r *RateLimiter) SetLimit(eventsPerSecond float64) {
	if eventsPerSecond <= 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(eventsPerSecond))
}

// Tokens returns the number of tokens currently available. Useful for
// diagnostics; the value may be stale by the time it is observed.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
