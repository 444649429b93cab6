package ratelimit

import (
	"sync"
	"time"
)

// LimitResult contains the result of a rate limit check
type LimitResult struct {
	Allowed    bool          // Whether the request is allowed
	RetryAfter time.Duration // Suggested wait time if not allowed
	LimitType  string        // "global", "query", or "disabled"
	Remaining  float64       // Remaining tokens in the bucket that decided
}

// Limiter enforces MirseoDB's two-level rate limit: every request spends
// one global token, and /query requests additionally spend one query
// token. A request rejected by the query bucket has already paid its
// global token, so rejected queries still draw down the global allowance
// that the other routes share.
type Limiter struct {
	mu      sync.RWMutex
	enabled bool
	global  *bucket
	query   *bucket
	metrics *Metrics
}

// NewLimiter creates a limiter from cfg, falling back to defaults when
// cfg is nil
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Limiter{
		enabled: cfg.Enabled,
		global:  newBucket(cfg.Global),
		query:   newBucket(cfg.Query),
		metrics: NewMetrics(),
	}
}

// Allow checks whether a request for the given route may proceed. Any
// route name other than QueryRoute only pays the global token.
func (l *Limiter) Allow(route string) *LimitResult {
	l.mu.RLock()
	enabled := l.enabled
	l.mu.RUnlock()
	if !enabled {
		return &LimitResult{Allowed: true, LimitType: "disabled", Remaining: -1}
	}

	if !l.global.take() {
		l.metrics.RecordRejection("global")
		return &LimitResult{
			Allowed:    false,
			RetryAfter: l.global.retryAfter(),
			LimitType:  "global",
			Remaining:  l.global.available(),
		}
	}

	if route == QueryRoute {
		if !l.query.take() {
			l.metrics.RecordRejection(QueryRoute)
			return &LimitResult{
				Allowed:    false,
				RetryAfter: l.query.retryAfter(),
				LimitType:  QueryRoute,
				Remaining:  l.query.available(),
			}
		}
		l.metrics.RecordAllowed()
		return &LimitResult{Allowed: true, LimitType: QueryRoute, Remaining: l.query.available()}
	}

	l.metrics.RecordAllowed()
	return &LimitResult{Allowed: true, LimitType: "global", Remaining: l.global.available()}
}

// IsEnabled returns whether rate limiting is enabled
func (l *Limiter) IsEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// SetEnabled enables or disables rate limiting
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// GetMetrics returns the limiter's outcome counters
func (l *Limiter) GetMetrics() *Metrics {
	return l.metrics
}

// Reset restores both buckets to full capacity
func (l *Limiter) Reset() {
	l.global.reset()
	l.query.reset()
}

// Stats is a point-in-time view of the limiter for diagnostics
type Stats struct {
	Enabled      bool    `json:"enabled"`
	GlobalTokens float64 `json:"global_tokens"`
	QueryTokens  float64 `json:"query_tokens"`
}

// GetStats returns current limiter statistics
func (l *Limiter) GetStats() *Stats {
	return &Stats{
		Enabled:      l.IsEnabled(),
		GlobalTokens: l.global.available(),
		QueryTokens:  l.query.available(),
	}
}
