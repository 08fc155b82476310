package selector

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Delay is invoked once per Select call after the cache has been consulted.
// It stands in for the simulated latency of the reference selector and lets
// tests run without sleeping.
type Delay interface {
	Wait(ctx context.Context) error
}

// NoDelay returns immediately.
type NoDelay struct{}

// Wait returns nil.
func (NoDelay) Wait(context.Context) error { return nil }

// FixedDelay blocks for a fixed duration or until ctx is done.
type FixedDelay time.Duration

// Wait sleeps for d, returning ctx.Err() if ctx ends first.
func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitDelay admits at most perSecond calls per second across every worker.
type RateLimitDelay struct {
	limiter *rate.Limiter
}

// NewRateLimitDelay creates a limiter with the given rate and burst.
func NewRateLimitDelay(perSecond float64, burst int) *RateLimitDelay {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitDelay{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the limiter admits the call or ctx is done.
func (d *RateLimitDelay) Wait(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}
