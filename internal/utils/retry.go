package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

// RetryBaseDelay is the first delay between attempts. Later delays grow exponentially.
var RetryBaseDelay = time.Second

// Retry calls callFunc until it succeeds, maxRetries attempts are spent or ctx
// is done.
func Retry[T any](ctx context.Context, name string, maxRetries uint, callFunc func(context.Context) (T, error)) (T, error) {
	var zero T
	if maxRetries == 0 {
		return zero, fmt.Errorf("max retries must be greater than 0")
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = RetryBaseDelay
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries-1)), ctx)

	var (
		result  T
		attempt uint
	)
	err := backoff.RetryNotify(func() error {
		attempt++
		var err error
		result, err = callFunc(ctx)
		return err
	}, policy, func(err error, next time.Duration) {
		slog.Debug("Retrying call", "call", name, "attempt", attempt, "next", next, "error", err)
	})
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return zero, errors.WithMessage(ctx.Err(), fmt.Sprintf("%s interrupted after %d attempts", name, attempt))
	}
	return zero, errors.WithMessage(err, fmt.Sprintf("failed after %d retries", maxRetries))
}
