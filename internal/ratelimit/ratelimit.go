// Package ratelimit provides a wrapper around golang.org/x/time/rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with convenience methods. It is used to
// pace polling loops against the node so they never peg a core.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing eventsPerSecond with a burst of one,
// which makes Wait behave as a minimum inter-event delay.
func New(eventsPerSecond float64) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), 1),
	}
}

// NewWithBurst creates a limiter with an explicit burst.
func NewWithBurst(eventsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

// Wait blocks until an event may happen or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetLimit updates the rate.
func (l *Limiter) SetLimit(eventsPerSecond float64) {
	l.limiter.SetLimit(rate.Limit(eventsPerSecond))
}
