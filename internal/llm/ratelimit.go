package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter is a token bucket holding one minute's worth of requests.
// Tokens accrue continuously from the time elapsed since the last refill.
type rateLimiter struct {
	lastRefill time.Time
	now        func() time.Time
	tokens     float64
	capacity   float64
	perSecond  float64
	poll       time.Duration
	mu         sync.Mutex
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	capacity := float64(requestsPerMinute)
	return &rateLimiter{
		lastRefill: time.Now(),
		now:        time.Now,
		tokens:     capacity,
		capacity:   capacity,
		perSecond:  capacity / 60,
		poll:       50 * time.Millisecond,
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(rl.poll)
	defer ticker.Stop()

	for {
		if rl.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.lastRefill); elapsed > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+elapsed.Seconds()*rl.perSecond)
		rl.lastRefill = now
	}
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}
