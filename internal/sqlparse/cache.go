package sqlparse

import (
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity is the fingerprint cache's fixed LRU capacity.
const DefaultCacheCapacity = 1000

// DialectResult is what the fingerprint cache stores per SQL string.
type DialectResult struct {
	Dialect    Dialect
	Confidence float64
	DetectedAt time.Time
}

// Fingerprint returns a stable 64-bit hash over the raw SQL string, used
// as the dialect cache key.
func Fingerprint(sql string) uint64 {
	return xxhash.Sum64String(sql)
}

// DialectCache is the fingerprint -> DialectResult LRU. It is safe for
// concurrent use (golang-lru/v2 guards its own internal lock),
// independent of the engine lock.
type DialectCache struct {
	lru *lru.Cache[uint64, DialectResult]
}

func NewDialectCache(capacity int) *DialectCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	c, _ := lru.New[uint64, DialectResult](capacity)
	return &DialectCache{lru: c}
}

// Detect returns the cached dialect result for sql, computing and caching
// it on a miss. Caching never changes what a caller observes: the
// dialect is a widen-the-accepted-keywords hint only, so a stale cache
// entry costs extra scanning in the worst case, never a wrong parse.
func (c *DialectCache) Detect(sql string) DialectResult {
	fp := Fingerprint(sql)
	if cached, ok := c.lru.Get(fp); ok {
		return cached
	}
	dialect, confidence := DetectDialect(sql)
	result := DialectResult{Dialect: dialect, Confidence: confidence, DetectedAt: time.Now()}
	c.lru.Add(fp, result)
	return result
}

// Len reports how many fingerprints are currently cached.
func (c *DialectCache) Len() int { return c.lru.Len() }
