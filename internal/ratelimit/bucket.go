package ratelimit

import (
	"sync"
	"time"
)

// bucket is a continuously refilling token bucket: the level grows at
// rate tokens per second up to burst, and each admitted request spends
// one token. Short bursts pass until the burst allowance drains, after
// which admission converges on the steady rate.
type bucket struct {
	mu    sync.Mutex
	rate  float64 // tokens per second
	burst float64 // bucket capacity
	level float64 // current tokens
	last  time.Time
}

func newBucket(cfg LimitConfig) *bucket {
	capacity := float64(cfg.BurstSize)
	return &bucket{
		rate:  cfg.RequestsPerSecond,
		burst: capacity,
		level: capacity, // start full so startup traffic isn't penalized
		last:  time.Now(),
	}
}

// take spends one token if the bucket holds at least one.
func (b *bucket) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	if b.level < 1 {
		return false
	}
	b.level--
	return true
}

// refill credits tokens for the time elapsed since the last refill.
// Caller must hold mu.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.last = now
	b.level += elapsed * b.rate
	if b.level > b.burst {
		b.level = b.burst
	}
}

// available reports the current token level.
func (b *bucket) available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	return b.level
}

// retryAfter reports how long until the next token accrues, or 0 if one
// is already available.
func (b *bucket) retryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	if b.level >= 1 {
		return 0
	}
	if b.rate <= 0 {
		return time.Hour // never refills; report a long, finite wait
	}
	missing := 1 - b.level
	return time.Duration(missing / b.rate * float64(time.Second))
}

// reset restores the bucket to full capacity.
func (b *bucket) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = b.burst
	b.last = time.Now()
}
