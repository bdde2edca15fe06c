package stage

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"resource-broker-go/internal/broker"
)

// RateLimiter throttles dispatches per scheme. Schemes without a configured
// limit pass through.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates one token bucket per scheme with the given requests
// per second and burst.
func NewRateLimiter(limits map[string]float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{limiters: make(map[string]*rate.Limiter, len(limits))}
	for scheme, rps := range limits {
		rl.limiters[strings.ToLower(scheme)] = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return rl
}

// Name implements broker.Stage.
func (r *RateLimiter) Name() string { return "ratelimit" }

// Invoke waits for a token, or returns early when ctx is done.
func (r *RateLimiter) Invoke(ctx context.Context, c *broker.Context) error {
	l, ok := r.limiters[c.Request.Name.Scheme()]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
