package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIngestLimiter_AcquireRelease(t *testing.T) {
	l := NewIngestLimiter(2, time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if got := l.Active(); got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}

	l.Release()
	if got := l.Active(); got != 1 {
		t.Errorf("Active after release = %d, want 1", got)
	}
	l.Release()
}

func TestIngestLimiter_RejectsWhenFull(t *testing.T) {
	l := NewIngestLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer l.Release()

	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooBusy) {
		t.Errorf("error = %v, want ErrTooBusy", err)
	}
}

func TestIngestLimiter_SlotFreedWhileWaiting(t *testing.T) {
	l := NewIngestLimiter(1, time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Release()
	}()

	if err := l.Acquire(ctx); err != nil {
		t.Errorf("acquire should succeed once the slot frees, got %v", err)
	}
	l.Release()
}

func TestIngestLimiter_ParentContextCancellation(t *testing.T) {
	l := NewIngestLimiter(1, time.Minute)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled (not ErrTooBusy)", err)
	}
}

func TestIngestLimiter_ReleaseWithoutAcquire(t *testing.T) {
	l := NewIngestLimiter(1, time.Second)
	l.Release()
	if got := l.Active(); got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestNewIngestLimiter_Defaults(t *testing.T) {
	l := NewIngestLimiter(0, 0)
	if cap(l.semaphore) != DefaultMaxConcurrentIngests {
		t.Errorf("capacity = %d, want %d", cap(l.semaphore), DefaultMaxConcurrentIngests)
	}
	if l.maxWait != DefaultIngestWait {
		t.Errorf("maxWait = %v, want %v", l.maxWait, DefaultIngestWait)
	}
}
