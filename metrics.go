package credauth

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected logins.
	MetricLoginFailure
	// MetricAccountCreated counts successful registrations.
	MetricAccountCreated
	// MetricAccountDuplicate counts registrations rejected as duplicate.
	MetricAccountDuplicate
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts refresh attempts with a token that
	// was already rotated — the replay signal.
	MetricRefreshReuseDetected
	// MetricLogout counts single-token logout operations.
	MetricLogout
	// MetricLogoutAll counts bulk per-subject revocations.
	MetricLogoutAll
	// MetricStoreUnavailable counts operations that failed on store
	// infrastructure errors.
	MetricStoreUnavailable

	metricCount
)

// Metrics is a fixed-size registry of atomic counters. Increment is a single
// atomic add; no locks, no allocation.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments the counter for id. No-op on out-of-range ids.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter into a fresh map.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricCount),
	}
	if m == nil {
		return snapshot
	}
	for id := MetricID(0); id < metricCount; id++ {
		snapshot.Counters[id] = m.counters[id].Load()
	}
	return snapshot
}
