package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // Exponential backoff
	// ShouldRetry decides whether an error is worth another attempt; nil retries everything.
	ShouldRetry func(error) bool
}

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	_, err := Do(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do runs fn until it succeeds, attempts run out, the error is permanent or ctx ends.
func Do[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perm *Permanent
		if errors.As(err, &perm) {
			return zero, perm.Err
		}
		if config.ShouldRetry != nil && !config.ShouldRetry(err) {
			return zero, err
		}
		if attempt == attempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}

		delay := config.Delay
		if config.Backoff {
			delay = time.Duration(1<<(attempt-1)) * config.Delay
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
