package parser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum delay between provider calls. The first call never
// waits. Wait and the bookkeeping that follows it happen under one lock, so concurrent
// callers are serialized.
type RateLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	limiter  *rate.Limiter
	calls    int
	lastCall time.Time
}

// LimiterStats is a snapshot of limiter usage.
type LimiterStats struct {
	TotalCalls int           `json:"total_calls"`
	MinDelay   time.Duration `json:"min_delay"`
	LastCall   time.Time     `json:"last_call"`
}

// NewRateLimiter creates a limiter. A non-positive delay disables waiting.
func NewRateLimiter(minDelay time.Duration) *RateLimiter {
	l := &RateLimiter{minDelay: minDelay}
	l.limiter = l.newLimiter()
	return l
}

func (l *RateLimiter) newLimiter() *rate.Limiter {
	if l.minDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(l.minDelay), 1)
}

// Wait blocks until the minimum delay since the previous call has elapsed and returns how
// long it waited.
func (l *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait: %w", err)
	}
	waited := time.Since(start)
	l.calls++
	l.lastCall = time.Now()
	if waited >= time.Second {
		log.Printf("parser.RateLimiter: waited %s before call %d", waited.Round(time.Millisecond), l.calls)
	}
	return waited, nil
}

// Stats returns call counters.
func (l *RateLimiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterStats{TotalCalls: l.calls, MinDelay: l.minDelay, LastCall: l.lastCall}
}

// Reset forgets the previous call so the next Wait returns immediately.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = l.newLimiter()
	l.calls = 0
	l.lastCall = time.Time{}
}
