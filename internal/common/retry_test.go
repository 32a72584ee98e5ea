package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds after transient transport failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("dial: %w", ErrTransportFailure)
			}
			return nil
		}, fastRetry(3))

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry malformed responses", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return fmt.Errorf("decode: %w", ErrMalformedResponse)
		}, fastRetry(3))

		require.ErrorIs(t, err, ErrMalformedResponse)
		assert.Equal(t, 1, calls)
	})

	t.Run("wraps the last error when attempts run out", func(t *testing.T) {
		err := WithRetry(context.Background(), func() error {
			return &RetryableError{Err: errors.New("503"), Retryable: true}
		}, fastRetry(2))

		require.ErrorIs(t, err, ErrMaxRetries)
	})

	t.Run("single attempt returns the error unchanged", func(t *testing.T) {
		err := WithRetry(context.Background(), func() error {
			return ErrTransportFailure
		}, fastRetry(1))

		require.ErrorIs(t, err, ErrTransportFailure)
		assert.NotErrorIs(t, err, ErrMaxRetries)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return ErrTransportFailure
		}, fastRetry(3))

		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", lvl.String())

	_, err = ParseLevel("loud")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
