// AngelaMos | 2026
// retry.go

package core

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryMaxAttempts     = 3
	retryInitialInterval = 50 * time.Millisecond
	retryMaxInterval     = 500 * time.Millisecond
)

// RetryTransient runs a single store step, retrying it with bounded exponential
// backoff while it fails with ErrTransient. Only wrap the store call itself: side
// effects that already happened must stay outside fn, and fn must be safe to
// apply twice.
func RetryTransient(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry(ctx, fn, func(err error) bool {
		return errors.Is(err, ErrTransient)
	})
}

// RetryWrite is RetryTransient for writes that are not idempotent. It stops at
// the first ErrOutcomeUnknown, since a repeat could act on its own earlier,
// already applied attempt.
func RetryWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry(ctx, fn, func(err error) bool {
		return errors.Is(err, ErrTransient) && !errors.Is(err, ErrOutcomeUnknown)
	})
}

func retry(
	ctx context.Context,
	fn func(ctx context.Context) error,
	retryable func(error) bool,
) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, retryMaxAttempts),
		ctx,
	)

	return backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// RetryTransientValue is RetryTransient for steps that produce a value.
func RetryTransientValue[T any](
	ctx context.Context,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var out T
	err := RetryTransient(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// RetryWriteValue is RetryWrite for writes that produce a value.
func RetryWriteValue[T any](
	ctx context.Context,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var out T
	err := RetryWrite(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
