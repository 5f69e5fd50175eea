// AngelaMos | 2026
// retry_test.go

package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTransient_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("push token: %w", ErrTransient)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryTransient_PermanentStopsAtOnce(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("get user: %w", ErrNotFound)
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryTransient_GivesUp(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), func(context.Context) error {
		calls++
		return ErrTransient
	})

	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, retryMaxAttempts+1, calls)
}

func TestRetryTransient_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryTransient(ctx, func(context.Context) error {
		calls++
		return ErrTransient
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestRetryTransientValue(t *testing.T) {
	calls := 0
	v, err := RetryTransientValue(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", ErrTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = RetryTransientValue(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestRetryWrite_StopsWhenOutcomeUnknown(t *testing.T) {
	calls := 0
	err := RetryWrite(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("consume: %w: %w", ErrTransient, ErrOutcomeUnknown)
	})
	assert.ErrorIs(t, err, ErrOutcomeUnknown)
	assert.Equal(t, 1, calls)

	calls = 0
	v, err := RetryWriteValue(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("insert: %w", ErrTransient)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v, "failures known to be unapplied are still retried")
	assert.Equal(t, 2, calls)
}
