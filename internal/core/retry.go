package core

// retry.go provides an explicit higher-order retry wrapper. Retry is applied
// at call sites (typically around the storage writer's transaction attempt),
// never implicitly: validation and capacity failures must not be retried.

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls WithRetry: attempt ceiling, backoff schedule, and
// which errors are worth retrying.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Retryable       func(error) bool
}

// DefaultStoragePolicy retries transient store-busy conditions around a
// transaction attempt. Three attempts with short exponential backoff.
func DefaultStoragePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Retryable:       IsTransientStorageError,
	}
}

// IsTransientStorageError reports whether an error looks like a transient
// store-busy condition (deadlock, connection drop, timeout). Validation,
// capacity, parse, and not-found errors are never transient.
func IsTransientStorageError(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindParse, KindValidation, KindCapacity, KindNotFound, KindQuery, KindBusy:
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"deadlock",
		"connection refused",
		"connection reset",
		"timeout",
		"too many clients",
		"the database system is starting up",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry runs op under the policy and returns its result or the last
// error. A non-retryable error stops immediately.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		bo.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		bo.MaxInterval = policy.MaxInterval
	}
	bo.Reset()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}
