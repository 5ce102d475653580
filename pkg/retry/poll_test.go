package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "coursegrab/pkg/errors"
)

// fakeSleeper advances a fake clock instead of sleeping
type fakeSleeper struct {
	now    time.Time
	sleeps int
}

func (f *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	f.now = f.now.Add(d)
	f.sleeps++
	return nil
}

func newFakePoller(timeout, interval time.Duration) (*Poller, *fakeSleeper) {
	sleeper := &fakeSleeper{now: time.Unix(0, 0)}
	p := NewPoller(timeout, interval)
	p.Sleeper = sleeper
	p.now = func() time.Time { return sleeper.now }
	return p, sleeper
}

func TestPollerSucceedsWhenConditionBecomesTrue(t *testing.T) {
	p, sleeper := newFakePoller(10*time.Second, time.Second)

	calls := 0
	err := p.Until(context.Background(), errs.ErrorTypeDownloadTimeout, "file to appear", func() (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 condition checks, got %d", calls)
	}
	if sleeper.sleeps != 2 {
		t.Errorf("expected 2 sleeps, got %d", sleeper.sleeps)
	}
}

func TestPollerTimesOutWithTypedError(t *testing.T) {
	p, _ := newFakePoller(3*time.Second, time.Second)

	err := p.Until(context.Background(), errs.ErrorTypeAuthTimeout, "post-login marker", func() (bool, error) {
		return false, nil
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errs.IsType(err, errs.ErrorTypeAuthTimeout) {
		t.Errorf("expected auth_timeout error type, got %v", err)
	}
}

func TestPollerPropagatesConditionError(t *testing.T) {
	p, _ := newFakePoller(10*time.Second, time.Second)

	boom := errors.New("element went away")
	err := p.Until(context.Background(), errs.ErrorTypeDownloadTimeout, "anything", func() (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected condition error to propagate, got %v", err)
	}
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeNavigation, "flaky page")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 0},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errs.New(errs.ErrorTypeInvalidCredentials, "wrong password")
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 0},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}
