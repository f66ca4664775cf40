package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces calls to a fixed request rate by spacing them one
// interval apart. Concurrent waiters queue in call order.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. The first call passes immediately.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{interval: time.Minute / time.Duration(perMinute)}
}

// Wait blocks until this caller's slot arrives or the context is cancelled.
// A cancelled wait gives its slot up; later callers are not delayed by it.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	now := time.Now()
	if rl.next.Before(now) {
		rl.next = now
	}
	wait := rl.next.Sub(now)
	rl.next = rl.next.Add(rl.interval)
	rl.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		rl.mu.Lock()
		rl.next = rl.next.Add(-rl.interval)
		rl.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
