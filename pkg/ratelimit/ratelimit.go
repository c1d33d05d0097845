package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks the token state for a single tool.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter implements a per-tool token bucket: capacity tokens refilled over
// window. Buckets for different tools never contend beyond the brief map
// bookkeeping under the limiter mutex; no lock is held across calls.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	blocked  uint64
	now      func() time.Time // injectable clock for testing
}

// Stats is a snapshot of limiter counters.
type Stats struct {
	TrackedTools int    `json:"tracked_tools"`
	TotalBlocked uint64 `json:"total_blocked"`
}

// New creates a Limiter allowing capacity calls per tool per window.
func New(capacity int, window time.Duration) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// getBucket returns the bucket for tool, creating a full one if absent.
// Must be called with l.mu held.
func (l *Limiter) getBucket(tool string) *bucket {
	b, ok := l.buckets[tool]
	if !ok {
		b = &bucket{tokens: float64(l.capacity), lastRefill: l.now()}
		l.buckets[tool] = b
	}
	return b
}

// refill adds tokens based on elapsed time. Must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	refillRate := float64(l.capacity) / l.window.Seconds()
	b.tokens += elapsed * refillRate
	if b.tokens > float64(l.capacity) {
		b.tokens = float64(l.capacity)
	}
	b.lastRefill = now
}

// Allow consumes one token for tool when available. Returns false when the
// bucket is exhausted; the token count never goes negative.
func (l *Limiter) Allow(tool string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(tool)
	l.refill(b)

	if b.tokens < 1 {
		l.blocked++
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the number of whole tokens currently available for tool.
func (l *Limiter) Remaining(tool string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(tool)
	l.refill(b)

	remaining := int(b.tokens)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Reset drops the bucket for tool, or all buckets when tool is empty.
func (l *Limiter) Reset(tool string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tool == "" {
		l.buckets = make(map[string]*bucket)
		l.blocked = 0
		return
	}
	delete(l.buckets, tool)
}

// Stats returns a snapshot of limiter counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		TrackedTools: len(l.buckets),
		TotalBlocked: l.blocked,
	}
}
