package scraper

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a per-instance minimum interval between outbound
// requests by sleeping for the remaining interval before a request fires.
type RateLimiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time
}

// NewRateLimiter creates a rate limiter with the given minimum interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Wait blocks until the interval since the previous request has elapsed.
// The last-request timestamp is updated on request initiation, not on
// completion.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	nextAllowed := rl.lastRequest.Add(rl.interval)

	if now.Before(nextAllowed) {
		timer := time.NewTimer(nextAllowed.Sub(now))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	rl.lastRequest = time.Now()
	return nil
}
