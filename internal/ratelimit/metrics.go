package ratelimit

import (
	"sync/atomic"
	"time"
)

// Metrics counts limiter outcomes. With only two buckets there is
// nothing to map: one allowed counter and one rejected counter per
// limit type is the whole story.
type Metrics struct {
	allowed        atomic.Uint64
	rejectedGlobal atomic.Uint64
	rejectedQuery  atomic.Uint64
	start          time.Time
}

// NewMetrics creates a metrics tracker starting now
func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

// RecordAllowed counts an admitted request
func (m *Metrics) RecordAllowed() {
	m.allowed.Add(1)
}

// RecordRejection counts a rejected request against the bucket that
// rejected it ("global" or QueryRoute)
func (m *Metrics) RecordRejection(limitType string) {
	if limitType == QueryRoute {
		m.rejectedQuery.Add(1)
	} else {
		m.rejectedGlobal.Add(1)
	}
}

// TotalAllowed returns the total number of admitted requests
func (m *Metrics) TotalAllowed() uint64 {
	return m.allowed.Load()
}

// TotalRejected returns the total number of rejected requests
func (m *Metrics) TotalRejected() uint64 {
	return m.rejectedGlobal.Load() + m.rejectedQuery.Load()
}

// RejectionRate returns the rejected fraction of all decisions (0 to 1)
func (m *Metrics) RejectionRate() float64 {
	allowed := m.allowed.Load()
	rejected := m.TotalRejected()
	total := allowed + rejected
	if total == 0 {
		return 0
	}
	return float64(rejected) / float64(total)
}

// MetricsSnapshot is a point-in-time copy of all counters
type MetricsSnapshot struct {
	Allowed        uint64        `json:"allowed"`
	RejectedGlobal uint64        `json:"rejected_global"`
	RejectedQuery  uint64        `json:"rejected_query"`
	Uptime         time.Duration `json:"uptime"`
	RequestsPerSec float64       `json:"requests_per_second"`
}

// Snapshot copies the current counters
func (m *Metrics) Snapshot() *MetricsSnapshot {
	snap := &MetricsSnapshot{
		Allowed:        m.allowed.Load(),
		RejectedGlobal: m.rejectedGlobal.Load(),
		RejectedQuery:  m.rejectedQuery.Load(),
		Uptime:         time.Since(m.start),
	}
	total := snap.Allowed + snap.RejectedGlobal + snap.RejectedQuery
	if secs := snap.Uptime.Seconds(); secs > 0 {
		snap.RequestsPerSec = float64(total) / secs
	}
	return snap
}

// Reset zeroes every counter and restarts the uptime clock
func (m *Metrics) Reset() {
	m.allowed.Store(0)
	m.rejectedGlobal.Store(0)
	m.rejectedQuery.Store(0)
	m.start = time.Now()
}
