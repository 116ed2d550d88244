package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing(ctx context.Context) error { return errBoom }
func succeeding(ctx context.Context) error { return nil }

func newTestBreaker(t *testing.T) (*CircuitBreaker, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
		assert.Equal(t, CircuitClosed, cb.State())
	}

	require.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	assert.Equal(t, CircuitOpen, cb.State())

	// Calls are now rejected without running fn.
	ran := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	t.Parallel()

	cb, now := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(61 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// The trial request is allowed through.
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_SingleSuccessResets(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	cb.Execute(ctx, failing)
	cb.Execute(ctx, failing)
	require.NoError(t, cb.Execute(ctx, succeeding))

	// The failure count started over, so two more failures do not open.
	cb.Execute(ctx, failing)
	cb.Execute(ctx, failing)
	assert.Equal(t, CircuitClosed, cb.State())

	cb.Execute(ctx, failing)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_FailedTrialDoublesTimeout(t *testing.T) {
	t.Parallel()

	cb, now := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}

	// The failed trial reopens the circuit with a 120s timeout.
	*now = now.Add(61 * time.Second)
	require.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(61 * time.Second)
	assert.Equal(t, CircuitOpen, cb.State(), "60s is no longer enough after doubling")

	*now = now.Add(60 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestCircuitBreaker_TimeoutDoublingCapped(t *testing.T) {
	t.Parallel()

	cb, now := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}

	// Fail enough trials to push the timeout past the 8x cap.
	for i := 0; i < 6; i++ {
		*now = now.Add(8 * 60 * time.Second)
		cb.Execute(ctx, failing)
	}

	*now = now.Add(8*60*time.Second - time.Second)
	assert.Equal(t, CircuitOpen, cb.State())
	*now = now.Add(time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestCircuitBreaker_SuccessRestoresBaseTimeout(t *testing.T) {
	t.Parallel()

	cb, now := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}
	*now = now.Add(61 * time.Second)
	cb.Execute(ctx, failing) // doubles to 120s
	*now = now.Add(121 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeeding))

	// Open again; the base 60s timeout applies, not the doubled one.
	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}
	*now = now.Add(61 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestCircuitBreaker_ShouldTripFilter(t *testing.T) {
	t.Parallel()

	errIgnored := errors.New("ignored")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
		ShouldTrip:       func(err error) bool { return !errors.Is(err, errIgnored) },
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.Execute(ctx, func(ctx context.Context) error { return errIgnored })
	}
	assert.Equal(t, CircuitClosed, cb.State())

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()

	type change struct{ from, to CircuitState }
	var changes []change
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     60 * time.Second,
		OnStateChange: func(from, to CircuitState) {
			changes = append(changes, change{from, to})
		},
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	cb.Execute(ctx, failing)
	now = now.Add(61 * time.Second)
	cb.Execute(ctx, succeeding)

	require.Len(t, changes, 3)
	assert.Equal(t, change{CircuitClosed, CircuitOpen}, changes[0])
	assert.Equal(t, change{CircuitOpen, CircuitHalfOpen}, changes[1])
	assert.Equal(t, change{CircuitHalfOpen, CircuitClosed}, changes[2])
}

func TestCircuitBreaker_Snapshot(t *testing.T) {
	t.Parallel()

	cb, now := newTestBreaker(t)
	ctx := context.Background()

	snap := cb.Snapshot()
	assert.Equal(t, "closed", snap.State)
	assert.False(t, snap.IsOpen)
	assert.Zero(t, snap.ConsecutiveFailures)
	assert.Nil(t, snap.LastFailureAt)
	assert.Nil(t, snap.ReopenNotBefore)

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}

	snap = cb.Snapshot()
	assert.Equal(t, "open", snap.State)
	assert.True(t, snap.IsOpen)
	assert.Equal(t, 3, snap.ConsecutiveFailures)
	require.NotNil(t, snap.LastFailureAt)
	require.NotNil(t, snap.ReopenNotBefore)
	assert.Equal(t, now.Add(60*time.Second), *snap.ReopenNotBefore)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.Snapshot().ConsecutiveFailures)
}

func TestExecuteVal(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	got, err := ExecuteVal(ctx, cb, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failing)
	}
	_, err = ExecuteVal(ctx, cb, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestSourceBreakers(t *testing.T) {
	t.Parallel()

	sb := NewSourceBreakers(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	ctx := context.Background()

	a := sb.Get("dyxless")
	assert.Same(t, a, sb.Get("dyxless"))
	assert.NotSame(t, a, sb.Get("itp"))

	a.Execute(ctx, failing)
	require.Equal(t, CircuitOpen, a.State())
	require.Equal(t, CircuitClosed, sb.Get("itp").State())

	snaps := sb.Snapshots()
	require.Len(t, snaps, 2)
	assert.True(t, snaps["dyxless"].IsOpen)
	assert.False(t, snaps["itp"].IsOpen)

	sb.Reset("dyxless")
	assert.Equal(t, CircuitClosed, a.State())

	// Resetting an unknown source is a no-op.
	sb.Reset("missing")
}
