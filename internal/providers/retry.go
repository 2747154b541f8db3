package providers

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls the model-call retry policy:
// delay = baseMs * 2^attempt + random[0,100)ms.
type RetryConfig struct {
	MaxRetries int
	BaseMs     int
}

// DefaultRetryConfig is 3 retries starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseMs: 200}
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	base := time.Duration(cfg.BaseMs) * time.Millisecond
	exp := base << attempt // baseMs * 2^attempt
	jitter := time.Duration(rand.Intn(100)) * time.Millisecond
	return exp + jitter
}

// RetryDo runs fn, retrying on transient AdapterErrors with exponential
// backoff and jitter. Permanent errors (and non-AdapterError failures,
// treated as permanent) fail fast. Context cancellation aborts retries
// immediately.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoffDelay(cfg, attempt)):
		}
	}
	return zero, lastErr
}
