package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int, retryable func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Retryable:       retryable,
	}
}

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := WithRetry(context.Background(), fastPolicy(3, nil), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got %d after %d calls, want 42 after 1", got, calls)
	}
}

func TestWithRetry_RecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	got, err := WithRetry(context.Background(), fastPolicy(3, func(error) bool { return true }), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("deadlock detected")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	_, err := WithRetry(context.Background(), fastPolicy(3, func(error) bool { return true }), func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want last error", err)
	}
	if calls != 3 {
		t.Errorf("op ran %d times, want 3", calls)
	}
}

func TestWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), DefaultStoragePolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, &StructuralValidationError{Violations: []string{"bad"}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("validation failure retried %d times, must run exactly once", calls)
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: time.Minute,
		Retryable:       func(error) bool { return true },
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, policy, func(ctx context.Context) (int, error) {
		return 0, errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestIsTransientStorageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", errors.New("ERROR: deadlock detected"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"too many clients", errors.New("FATAL: sorry, too many clients already"), true},
		{"wrapped transient", &StorageError{Op: "begin transaction", Cause: errors.New("connection refused")}, true},
		{"plain storage failure", &StorageError{Op: "insert", Cause: errors.New("syntax error")}, false},
		{"validation", &StructuralValidationError{Violations: []string{"x"}}, false},
		{"capacity", &CapacityError{Reason: "too big"}, false},
		{"parse", &ParseError{Cause: errors.New("bad csv")}, false},
		{"not found", ErrNotFound, false},
		{"query", &QueryError{Reason: "unknown operator"}, false},
		{"busy", ErrTooBusy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientStorageError(tt.err); got != tt.want {
				t.Errorf("IsTransientStorageError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
