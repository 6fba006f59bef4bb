package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := &Config{Delays: []time.Duration{time.Millisecond, time.Millisecond}}
	attempts := 0
	result, err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, result.Attempts)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	cfg := &Config{
		Delays:    []time.Duration{time.Millisecond, time.Millisecond},
		Retryable: func(err error) bool { return false },
	}
	attempts := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ExhaustsSchedule(t *testing.T) {
	cfg := &Config{Delays: []time.Duration{time.Millisecond}}
	attempts := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts) // 1 + len(Delays)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("jira", &CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Hour})
	_ = cb.Execute(func() error { return errors.New("fail") })
	_ = cb.Execute(func() error { return errors.New("fail") })
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_ClosesAfterHalfOpenSuccesses(t *testing.T) {
	cb := NewCircuitBreaker("jira", &CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Millisecond})
	_ = cb.Execute(func() error { return errors.New("fail") })
	require.Equal(t, StateOpen, cb.State())
	time.Sleep(2 * time.Millisecond)
	_ = cb.Execute(func() error { return nil })
	assert.Equal(t, StateClosed, cb.State())
}
