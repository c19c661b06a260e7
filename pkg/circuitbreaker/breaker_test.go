package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing(calls *int) func() error {
	return func() error {
		*calls++
		return errBoom
	}
}

func succeeding(calls *int) func() error {
	return func() error {
		*calls++
		return nil
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	calls := 0
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(ctx, failing(&calls)), errBoom)
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, failing(&calls))
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, calls, "open breaker must not invoke the call")
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	calls := 0
	require.ErrorIs(t, cb.Execute(ctx, failing(&calls)), errBoom)
	require.NoError(t, cb.Execute(ctx, succeeding(&calls)))
	require.ErrorIs(t, cb.Execute(ctx, failing(&calls)), errBoom)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 3, calls)
}

func TestHalfOpenProbeRecloses(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 20 * time.Millisecond})
	ctx := context.Background()

	calls := 0
	require.ErrorIs(t, cb.Execute(ctx, failing(&calls)), errBoom)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeeding(&calls)))
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, Timeout: 20 * time.Millisecond})
	ctx := context.Background()

	calls := 0
	require.ErrorIs(t, cb.Execute(ctx, failing(&calls)), errBoom)

	time.Sleep(30 * time.Millisecond)
	require.ErrorIs(t, cb.Execute(ctx, failing(&calls)), errBoom)

	err := cb.Execute(ctx, failing(&calls))
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestCanceledContextSkipsCall(t *testing.T) {
	cb := New("test", Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := cb.Execute(ctx, succeeding(&calls))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
