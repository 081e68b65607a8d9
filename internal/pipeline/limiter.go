package pipeline

// limiter.go bounds how many runs execute at once.
//
// A semaphore channel holds one token per running load. A caller that finds
// every slot taken waits up to maxWait and then gets ErrRunInProgress.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrRunInProgress is returned when no run slot frees up within the wait
// limit.
var ErrRunInProgress = errors.New("a catalog load is already running")

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 5 * time.Second

// Limiter is a counting semaphore for runs.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewLimiter allows maxConcurrent simultaneous runs. Both arguments fall back
// to defaults (one run, DefaultMaxWaitTime) when <= 0.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's maxWait. The caller must
// call Release once the run finishes.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrRunInProgress
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of runs holding a slot.
func (l *Limiter) Active() int { return int(l.active.Load()) }

// Available returns the number of free slots.
func (l *Limiter) Available() int { return cap(l.slots) - len(l.slots) }

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
