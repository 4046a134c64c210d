package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatnet/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 3,
	}
}

func failN(cb *circuitbreaker.CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(context.Background(), func() error {
			return errors.New("boom")
		})
	}
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := circuitbreaker.New(testConfig())

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func() error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.GetState())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := circuitbreaker.New(testConfig())

	failN(cb, 2)
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	// Requests are rejected without invoking the function
	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := circuitbreaker.New(testConfig())

	failN(cb, 2)
	require.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	// After the timeout, probes are allowed again
	time.Sleep(25 * time.Millisecond)

	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func() error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := circuitbreaker.New(testConfig())

	failN(cb, 2)
	time.Sleep(25 * time.Millisecond)

	failN(cb, 1)
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := circuitbreaker.New(testConfig())

	failN(cb, 2)
	require.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, circuitbreaker.StateClosed, cb.GetState())

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.NoError(t, err)
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := circuitbreaker.New(testConfig())

	failN(cb, 1)
	stats := cb.GetStats()
	assert.Equal(t, circuitbreaker.StateClosed, stats.State)
	assert.Equal(t, 1, stats.FailureCount)
	assert.False(t, stats.LastFailureTime.IsZero())
}
