package retry

import (
	"context"
	"time"
)

// Policy bounds a retried remote call: total attempts and the
// exponential backoff window waited before each retry.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// OnRetry is invoked before each re-attempt with the attempt
	// number about to run (2-based) and the error that caused it.
	OnRetry func(attempt int, err error)
}

// Default is the policy used for provider calls: 3 attempts, backoff
// starting at 2s capped at 10s.
func Default() Policy {
	return Policy{Attempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// Do executes fn until it succeeds or the attempt budget is exhausted,
// sleeping the backoff delay before each retry. The last error is
// returned on exhaustion. Waits are cut short by ctx cancellation.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			select {
			case <-time.After(p.delay(attempt - 1)):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// delay returns the backoff before retry n (n=1 for the first retry).
func (p Policy) delay(n int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
