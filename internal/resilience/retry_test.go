package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestDo_ShouldRetryStopsEarly(t *testing.T) {
	t.Parallel()

	errFatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		ShouldRetry: func(err error) bool { return !errors.Is(err, errFatal) },
	}, func(ctx context.Context) error {
		calls++
		return errFatal
	})

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls, "cancellation must stop further attempts")
}

func TestDoVal_ReturnsValue(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errBoom
		}
		return "hello", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, 2, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	t.Parallel()

	var attempts []int
	Do(context.Background(), RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry:     func(attempt int, err error) { attempts = append(attempts, attempt) },
	}, func(ctx context.Context) error {
		return errBoom
	})

	// Called before each backoff, so never after the final attempt.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoffDelay_Linear(t *testing.T) {
	t.Parallel()

	cfg := applyDefaults(RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second})
	assert.Equal(t, time.Second, backoffDelay(1, cfg))
	assert.Equal(t, 2*time.Second, backoffDelay(2, cfg))
	assert.Equal(t, 3*time.Second, backoffDelay(3, cfg))
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	t.Parallel()

	cfg := applyDefaults(RetryConfig{BaseDelay: 4 * time.Second, MaxDelay: 10 * time.Second})
	assert.Equal(t, 10*time.Second, backoffDelay(5, cfg))
}

func TestBackoffDelay_JitterStaysInRange(t *testing.T) {
	t.Parallel()

	cfg := applyDefaults(RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second, JitterFraction: 0.5})
	for i := 0; i < 100; i++ {
		d := backoffDelay(2, cfg)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := applyDefaults(RetryConfig{})
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.MaxDelay)
}
