package core

// limiter.go bounds how many sync runs execute at once.
//
// A sync run fans out to every source and then writes the whole vehicle
// set, so two overlapping runs only double the load on the spreadsheet
// quota and the store. Callers that find every slot taken wait up to
// maxWait, then get ErrTooManySyncs. WaitForDrain lets shutdown finish
// in-flight runs.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManySyncs is returned when no sync slot frees up within the wait
// time. Clients should retry later.
var ErrTooManySyncs = errors.New("too many concurrent syncs, please try again later")

const (
	// DefaultMaxConcurrentSyncs is the slot count used when none is configured.
	DefaultMaxConcurrentSyncs = 1

	// DefaultSyncWait is how long Acquire waits for a slot by default.
	DefaultSyncWait = 10 * time.Second
)

// SyncLimiter is a semaphore over sync runs.
type SyncLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewSyncLimiter allows maxConcurrent runs at once; non-positive arguments
// fall back to the defaults.
func NewSyncLimiter(maxConcurrent int, maxWait time.Duration) *SyncLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSyncs
	}
	if maxWait <= 0 {
		maxWait = DefaultSyncWait
	}
	return &SyncLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. It returns ctx.Err() if
// ctx ends first. Callers must Release after a nil return.
func (l *SyncLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManySyncs
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *SyncLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *SyncLimiter) Release() {
	l.track(-1)
	<-l.slots
}

func (l *SyncLimiter) track(delta int) {
	l.mu.Lock()
	l.active += delta
	l.mu.Unlock()
}

// ActiveCount returns the number of running syncs.
func (l *SyncLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *SyncLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no sync is running or ctx ends.
func (l *SyncLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the limiter state for health output.
func (l *SyncLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
