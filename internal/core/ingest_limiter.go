package core

// ingest_limiter.go bounds concurrent ingestions with a semaphore so the
// per-upload memory ceiling stays predictable under load. Requests that
// cannot acquire a slot within the wait window fail with ErrTooBusy and
// should be retried by the client after a short delay.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooBusy is returned when all ingest slots are occupied and the wait
// timeout expires.
var ErrTooBusy = errors.New("too many concurrent uploads, please try again later")

// DefaultMaxConcurrentIngests is the default limit for parallel ingestions.
const DefaultMaxConcurrentIngests = 5

// DefaultIngestWait is how long to wait for a slot before rejecting.
const DefaultIngestWait = 30 * time.Second

// IngestLimiter controls concurrent ingestion using a semaphore pattern.
type IngestLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewIngestLimiter creates a limiter allowing at most maxConcurrent
// simultaneous ingestions.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentIngests
	}
	if maxWait <= 0 {
		maxWait = DefaultIngestWait
	}
	return &IngestLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire blocks until a slot is available or the wait window expires.
// The caller must Release when the ingestion completes (use defer).
func (l *IngestLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooBusy
	}
}

// Release frees a slot acquired by Acquire.
func (l *IngestLimiter) Release() {
	select {
	case <-l.semaphore:
		l.mu.Lock()
		if l.active > 0 {
			l.active--
		}
		l.mu.Unlock()
	default:
	}
}

// Active returns the number of ingestions currently holding a slot.
func (l *IngestLimiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}
