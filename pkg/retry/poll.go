package retry

import (
	"context"
	"time"

	errs "coursegrab/pkg/errors"
)

// Condition is checked repeatedly by Poll. done=true stops the poll
// successfully; a non-nil error aborts it immediately.
type Condition func() (done bool, err error)

// Sleeper abstracts waiting between poll attempts so tests can use a
// fake clock
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realSleeper waits on the wall clock
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return Wait(ctx, d)
}

// Poller runs bounded condition polls with a fixed interval. The
// authenticator, walker and orchestrator all funnel their waits
// through one of these so timeout policy lives in one place.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	Sleeper  Sleeper

	now func() time.Time
}

// NewPoller creates a poller with the given timeout and check interval
func NewPoller(timeout, interval time.Duration) *Poller {
	return &Poller{
		Interval: interval,
		Timeout:  timeout,
		Sleeper:  realSleeper{},
		now:      time.Now,
	}
}

// Until polls cond until it reports done, the timeout elapses, or the
// context is cancelled. On timeout it returns a typed error carrying
// errorType so callers can report it in their own taxonomy.
func (p *Poller) Until(ctx context.Context, errorType errs.ErrorType, what string, cond Condition) error {
	deadline := p.now().Add(p.Timeout)

	for {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !p.now().Before(deadline) {
			return errs.Newf(errorType, "timed out after %s waiting for %s", p.Timeout, what)
		}

		if err := p.Sleeper.Sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
}

// Poll is a one-shot convenience over Poller
func Poll(ctx context.Context, timeout, interval time.Duration, errorType errs.ErrorType, what string, cond Condition) error {
	return NewPoller(timeout, interval).Until(ctx, errorType, what, cond)
}
