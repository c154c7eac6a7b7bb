package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects real-time performance metrics for the admin
// HTTP surface: request counts/timings and connection accounting.
// Buffer-pool counters live on storage.BufferPool and page I/O counters
// on ResourceTracker; PrometheusExporter reads both directly rather
// than mirroring them here.
type MetricsCollector struct {
	requestsExecuted uint64
	requestsFailed   uint64
	totalRequestTime uint64 // nanoseconds

	activeConnections uint64
	totalConnections  uint64

	mu           sync.RWMutex
	requestTimings *TimingHistogram

	startTime time.Time
}

// TimingHistogram stores timing data in buckets for histogram generation.
type TimingHistogram struct {
	bucket0_1ms      uint64
	bucket1_10ms     uint64
	bucket10_100ms   uint64
	bucket100_1000ms uint64
	bucket1000ms     uint64

	mu               sync.Mutex
	recentTimings    []time.Duration
	maxRecentTimings int
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestTimings: NewTimingHistogram(1000),
		startTime:      time.Now(),
	}
}

// NewTimingHistogram creates a new timing histogram with the given
// recent-sample retention size.
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

// RecordRequest records one HTTP request's duration and outcome.
func (mc *MetricsCollector) RecordRequest(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.requestsExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.requestsFailed, 1)
	}
	atomic.AddUint64(&mc.totalRequestTime, uint64(duration.Nanoseconds()))
	mc.requestTimings.Record(duration)
}

// RecordConnectionStart records a new inbound connection.
func (mc *MetricsCollector) RecordConnectionStart() {
	atomic.AddUint64(&mc.totalConnections, 1)
	atomic.AddUint64(&mc.activeConnections, 1)
}

// RecordConnectionEnd records a connection closing.
func (mc *MetricsCollector) RecordConnectionEnd() {
	atomic.AddUint64(&mc.activeConnections, ^uint64(0))
}

// Record adds a timing to the histogram.
func (th *TimingHistogram) Record(duration time.Duration) {
	ms := duration.Milliseconds()
	switch {
	case ms < 1:
		atomic.AddUint64(&th.bucket0_1ms, 1)
	case ms < 10:
		atomic.AddUint64(&th.bucket1_10ms, 1)
	case ms < 100:
		atomic.AddUint64(&th.bucket10_100ms, 1)
	case ms < 1000:
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, duration)
}

// GetBuckets returns the histogram bucket counts.
func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

// GetPercentiles calculates P50, P95, P99 from recent timings.
func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	p50 := len(sorted) * 50 / 100
	p95 := len(sorted) * 95 / 100
	p99 := len(sorted) * 99 / 100
	return map[string]time.Duration{"p50": sorted[p50], "p95": sorted[p95], "p99": sorted[p99]}
}

// GetMetrics returns a snapshot of all collector metrics.
func (mc *MetricsCollector) GetMetrics() map[string]interface{} {
	requestsExecuted := atomic.LoadUint64(&mc.requestsExecuted)
	requestsFailed := atomic.LoadUint64(&mc.requestsFailed)
	totalRequestTime := atomic.LoadUint64(&mc.totalRequestTime)

	var avgRequestTime float64
	if requestsExecuted > 0 {
		avgRequestTime = float64(totalRequestTime) / float64(requestsExecuted) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(mc.startTime).Seconds(),
		"requests": map[string]interface{}{
			"total":              requestsExecuted,
			"failed":             requestsFailed,
			"success_rate":       calculateSuccessRate(requestsExecuted, requestsFailed),
			"avg_duration_ms":    avgRequestTime,
			"timing_histogram":   mc.requestTimings.GetBuckets(),
			"timing_percentiles": mc.requestTimings.GetPercentiles(),
		},
		"connections": map[string]interface{}{
			"active": atomic.LoadUint64(&mc.activeConnections),
			"total":  atomic.LoadUint64(&mc.totalConnections),
		},
	}
}

// Reset resets all metrics to zero.
func (mc *MetricsCollector) Reset() {
	atomic.StoreUint64(&mc.requestsExecuted, 0)
	atomic.StoreUint64(&mc.requestsFailed, 0)
	atomic.StoreUint64(&mc.totalRequestTime, 0)
	atomic.StoreUint64(&mc.totalConnections, 0)
	// activeConnections isn't reset: it represents current state.

	mc.mu.Lock()
	mc.requestTimings = NewTimingHistogram(1000)
	mc.mu.Unlock()

	mc.startTime = time.Now()
}

func calculateSuccessRate(total, failed uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-failed) / float64(total) * 100
}
