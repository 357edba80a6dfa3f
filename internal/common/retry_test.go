package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/compliance-intelligence/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     30 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ErrGenerationTimeout
		}
		return nil
	}, fastRetry(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return ErrInvalidInput
	}, fastRetry(5))

	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return ErrGenerationTimeout
	}, fastRetry(3))

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_RateLimitWaitsMaxDelay(t *testing.T) {
	opts := fastRetry(2)
	calls := 0
	started := time.Now()
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("status 429: %w", ErrRateLimit)
		}
		return nil
	}, opts)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(started), opts.MaxDelay)
}

func TestWithRetry_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := WithRetry(ctx, func() error {
		cancel()
		return ErrGenerationTimeout
	}, fastRetry(5))

	assert.ErrorIs(t, err, context.Canceled)
}

type classified struct{ transient bool }

func (c classified) Error() string   { return "classified" }
func (c classified) Retryable() bool { return c.transient }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "generation timeout", err: ErrGenerationTimeout, want: true},
		{name: "rate limit", err: fmt.Errorf("wrapped: %w", ErrRateLimit), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "transient classified", err: fmt.Errorf("x: %w", classified{transient: true}), want: true},
		{name: "permanent classified", err: classified{}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
