package llm

import (
	"context"
	"errors"
	"time"

	"github.com/joelkehle/office-action-response/internal/apperr"
)

// RetryPolicy bounds how many times an unreliable call is attempted.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy allows one retry after the first failure.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 2}
}

var errInvalidResult = errors.New("result rejected by validity check")

// Retry runs op until valid accepts its result or the attempts are spent. An
// error from op and a rejected result count the same. The returned int is the
// number of attempts made.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context, attempt int) (T, error), valid func(T) error) (T, int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, p.Delay); err != nil {
				return zero, attempt - 1, apperr.ErrGenerationFailed.Wrap(errors.Join(lastErr, err))
			}
		}
		out, err := op(ctx, attempt)
		if err == nil && valid != nil {
			if verr := valid(out); verr != nil {
				err = errors.Join(errInvalidResult, verr)
			}
		}
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
	}
	return zero, attempts, apperr.ErrGenerationFailed.Wrap(lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
