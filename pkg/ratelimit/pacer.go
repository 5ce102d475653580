// Package ratelimit paces browser interactions so a bulk run reads to
// the portal like a patient user rather than a burst of automation.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer gates each portal interaction. Pace blocks until the next
// action is allowed or the context is cancelled.
type Pacer interface {
	Pace(ctx context.Context) error
}

// actionPacer spreads actions over time with a token bucket
type actionPacer struct {
	limiter *rate.Limiter
}

// NewActionPacer creates a pacer allowing actionsPerMinute sustained
// actions with the given burst. A non-positive rate disables pacing.
func NewActionPacer(actionsPerMinute, burst int) Pacer {
	if actionsPerMinute <= 0 {
		return NopPacer{}
	}
	if burst < 1 {
		burst = 1
	}
	return &actionPacer{
		limiter: rate.NewLimiter(rate.Limit(float64(actionsPerMinute)/60), burst),
	}
}

func (p *actionPacer) Pace(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NopPacer never blocks. Used when pacing is disabled and in tests.
type NopPacer struct{}

func (NopPacer) Pace(context.Context) error { return nil }
