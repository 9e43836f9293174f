package admission

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one admission counter.
type MetricID uint16

const (
	// MetricAuthSuccess counts requests admitted by the guard.
	MetricAuthSuccess MetricID = iota
	// MetricAuthMissingToken counts rejections with no session cookie.
	MetricAuthMissingToken
	// MetricAuthInvalidToken counts rejections by the token codec.
	MetricAuthInvalidToken
	// MetricAuthUnknownSubject counts valid tokens whose user no longer exists.
	MetricAuthUnknownSubject
	// MetricAuthForbidden counts identities lacking the required role bits.
	MetricAuthForbidden
	// MetricAuthInternalError counts lookup failures mapped to unauthorized.
	MetricAuthInternalError
	// MetricSessionCacheHit counts identities served from the session cache.
	MetricSessionCacheHit
	// MetricSessionCacheMiss counts identities resolved through the codec.
	MetricSessionCacheMiss
	// MetricSessionInvalidated counts cache entries dropped by subject.
	MetricSessionInvalidated
	// MetricTokenIssued counts tokens signed for the login flow.
	MetricTokenIssued
	// MetricRateLimitAllowed counts requests within budget.
	MetricRateLimitAllowed
	// MetricRateLimitHit counts requests rejected with 429.
	MetricRateLimitHit
	// MetricRateLimitFailOpen counts requests let through on store failure.
	MetricRateLimitFailOpen
	// MetricStoreFallback is set once when the store falls back to memory.
	MetricStoreFallback
	// MetricAuthenticateLatency is the Authenticate latency histogram.
	MetricAuthenticateLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricAuthSuccess:         "auth_success",
	MetricAuthMissingToken:    "auth_missing_token",
	MetricAuthInvalidToken:    "auth_invalid_token",
	MetricAuthUnknownSubject:  "auth_unknown_subject",
	MetricAuthForbidden:       "auth_forbidden",
	MetricAuthInternalError:   "auth_internal_error",
	MetricSessionCacheHit:     "session_cache_hit",
	MetricSessionCacheMiss:    "session_cache_miss",
	MetricSessionInvalidated:  "session_invalidated",
	MetricTokenIssued:         "token_issued",
	MetricRateLimitAllowed:    "rate_limit_allowed",
	MetricRateLimitHit:        "rate_limit_hit",
	MetricRateLimitFailOpen:   "rate_limit_fail_open",
	MetricStoreFallback:       "store_fallback",
	MetricAuthenticateLatency: "authenticate_latency",
}

// String returns the snake_case metric name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// LatencyBucketBounds are the inclusive upper bounds of the latency
// histogram buckets. The last bucket is unbounded.
var LatencyBucketBounds = [histBucketCount - 1]time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free admission counters. A nil or disabled Metrics
// ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only
// [MetricAuthenticateLatency] has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricAuthenticateLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricAuthenticateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range histBucketCount {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
