package delivery

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"public-feed/errors"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// RetryPolicy bounds the persistence retries. The pause before attempt n+1
// is BaseDelay×n: with 3 attempts, 1× then 2×.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry: base delay cannot be negative")
	}
	return nil
}

// Delay is the pause after the given failed attempt, counted from 1.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transient tells whether a store failure is worth another attempt.
// Only the availability class is, anything unclassified is not.
func transient(err error) bool {
	return stderrors.Is(err, errors.ErrStoreUnavailable)
}

// retry runs fn until it succeeds, fails permanently or attempts run out.
// A forbidden store ends with ErrPermissionDenied, exhaustion with
// ErrPersistenceUnavailable. The last store error stays wrapped.
func retry[T any](ctx context.Context, p RetryPolicy, wait Sleeper, onFailure func(attempt int, err error), fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if stderrors.Is(err, errors.ErrStoreForbidden) {
			return zero, fmt.Errorf("%w: %w", errors.ErrPermissionDenied, err)
		}
		if !transient(err) {
			return zero, fmt.Errorf("%w: %w", errors.ErrPersistenceUnavailable, err)
		}
		if onFailure != nil {
			onFailure(attempt, err)
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := wait(ctx, p.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", errors.ErrPersistenceUnavailable, p.MaxAttempts, lastErr)
}
