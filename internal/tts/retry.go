package tts

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds synthesis attempts with a fixed wait between them.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy makes three attempts one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second}
}

// Do runs op until it succeeds, returns ErrEmptyText, the context ends or
// the attempts are used up. notify sees every failed attempt.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) ([]byte, error), notify func(attempt int, err error)) ([]byte, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		data, err := op(ctx)
		if err == nil {
			return data, nil
		}
		if notify != nil {
			notify(attempt, err)
		}
		if errors.Is(err, ErrEmptyText) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Backoff)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
}
