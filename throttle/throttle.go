// Package throttle rate-limits outbound work using
// golang.org/x/time/rate, the library the rest of the pack reaches for
// instead of a hand-rolled token bucket.
package throttle

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a rate.Limiter. In this module it paces outbound calls
// made by network-touching steps (see examplesteps.HTTPFetch); the
// executor does not use it to gate workflow submissions.
type Limiter struct {
	limiter *rate.Limiter
}

// New builds a Limiter allowing ratePerSecond sustained events with a
// burst capacity of burst.
func New(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a token is immediately available, consuming it if
// so, without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
