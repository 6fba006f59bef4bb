// Package resilience implements the pipeline's retry and circuit-breaker
// primitives. Adapted from the teacher's internal/resilience/retry.go,
// trimmed to the fixed {100ms, 500ms, 1400ms} outer schedule spec §5
// prescribes for storage-gateway calls, and generalized from
// cloud-provider error-string sniffing to a caller-supplied retryable
// predicate (with no predicate, every error, a context deadline included,
// is retried; cancelling ctx ends the retrying at the next wait).
package resilience

import (
	"context"
	"errors"
	"time"
)

// Config defines the bounded retry schedule for a single Gateway.Query call.
type Config struct {
	// Delays is the fixed backoff schedule between attempts; len(Delays)+1
	// is the max attempt count.
	Delays []time.Duration
	// Retryable decides whether err should trigger another attempt. Nil
	// means "always retry"; the storage Gateway uses DefaultConfig, which
	// leaves it nil, so every failed store call is retried.
	Retryable func(err error) bool
}

// DefaultConfig returns the pipeline's fixed outer retry schedule per spec
// §5: up to four attempts, the first plus three retries after waits of
// 100ms, 500ms, and 1400ms.
func DefaultConfig() *Config {
	return &Config{
		Delays: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1400 * time.Millisecond},
	}
}

// Result reports the outcome of a retried operation.
type Result struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// Retry executes fn, retrying on the configured schedule. Retrying stops
// early when ctx is cancelled between attempts (spec §5 cancellation
// guarantee: in-flight calls are allowed to finish, only the wait between
// attempts is interruptible).
func Retry(ctx context.Context, cfg *Config, fn RetryableFunc) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	start := time.Now()
	result := &Result{}

	maxAttempts := len(cfg.Delays) + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt
		err := fn(ctx)
		if err == nil {
			result.TotalDuration = time.Since(start)
			return result, nil
		}
		result.LastError = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			result.TotalDuration = time.Since(start)
			return result, err
		}
		if attempt >= maxAttempts {
			result.TotalDuration = time.Since(start)
			return result, err
		}

		select {
		case <-time.After(cfg.Delays[attempt-1]):
		case <-ctx.Done():
			result.TotalDuration = time.Since(start)
			return result, errors.Join(err, ctx.Err())
		}
	}

	result.TotalDuration = time.Since(start)
	return result, result.LastError
}
