package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/mnohosten/pagestore/pkg/storage"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector       *MetricsCollector
	resourceTracker *ResourceTracker
	bufferPoolStats func() storage.BufferPoolStats
	namespace       string
}

// NewPrometheusExporter creates a new Prometheus exporter. bufferPoolStats
// is typically engine.BufferPoolStats; it may be nil if no engine is
// wired up (e.g. an admin server started before its data directory
// exists).
func NewPrometheusExporter(collector *MetricsCollector, resourceTracker *ResourceTracker, bufferPoolStats func() storage.BufferPoolStats) *PrometheusExporter {
	return &PrometheusExporter{
		collector:       collector,
		resourceTracker: resourceTracker,
		bufferPoolStats: bufferPoolStats,
		namespace:       "pagestore",
	}
}

// SetNamespace sets the metric namespace prefix.
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
// Format: https://prometheus.io/docs/instrumenting/exposition_formats/
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	uptime := time.Since(pe.collector.startTime).Seconds()
	if err := pe.writeGauge(w, "uptime_seconds", "Admin server uptime in seconds", uptime); err != nil {
		return err
	}

	requestsExecuted := atomic.LoadUint64(&pe.collector.requestsExecuted)
	requestsFailed := atomic.LoadUint64(&pe.collector.requestsFailed)
	totalRequestTime := atomic.LoadUint64(&pe.collector.totalRequestTime)

	if err := pe.writeCounter(w, "requests_total", "Total number of HTTP requests handled", requestsExecuted); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "requests_failed_total", "Total number of failed HTTP requests", requestsFailed); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "request_duration_nanoseconds_total", "Total request handling time in nanoseconds", totalRequestTime); err != nil {
		return err
	}
	if err := pe.writeHistogram(w, "request_duration_seconds", "HTTP request duration histogram", pe.collector.requestTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "request_duration_seconds", pe.collector.requestTimings); err != nil {
		return err
	}

	activeConnections := atomic.LoadUint64(&pe.collector.activeConnections)
	totalConnections := atomic.LoadUint64(&pe.collector.totalConnections)
	if err := pe.writeGauge(w, "active_connections", "Current number of active connections", float64(activeConnections)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "connections_total", "Total number of connections", totalConnections); err != nil {
		return err
	}

	if pe.bufferPoolStats != nil {
		bp := pe.bufferPoolStats()
		if err := pe.writeCounter(w, "buffer_pool_hits_total", "Page requests resolved without a disk read", bp.Hits); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "buffer_pool_misses_total", "Page requests that required a disk read", bp.Misses); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "buffer_pool_io_errors_total", "FileManager read failures on a cache miss", bp.IOErrors); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "buffer_pool_allocations_total", "AllocateNewPage calls that claimed a frame", bp.Allocations); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "buffer_pool_writes_total", "WritePage calls that reached the FileManager", bp.Writes); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "buffer_pool_exhausted_total", "claimFreeFrame calls that found no free frame", bp.BufferFull); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "buffer_pool_frames", "Configured number of buffer pool frames", float64(bp.NumFrames)); err != nil {
			return err
		}
		var hitRate float64
		if total := bp.Hits + bp.Misses; total > 0 {
			hitRate = float64(bp.Hits) / float64(total)
		}
		if err := pe.writeGauge(w, "buffer_pool_hit_rate", "Buffer pool hit rate (0-1)", hitRate); err != nil {
			return err
		}
	}

	if pe.resourceTracker != nil {
		stats := pe.resourceTracker.GetStats()

		if err := pe.writeGauge(w, "memory_heap_bytes", "Heap memory in bytes", float64(stats.HeapInUse)); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "memory_stack_bytes", "Stack memory in bytes", float64(stats.StackInUse)); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "memory_allocations_total", "Total bytes allocated", stats.AllocBytes); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "memory_objects", "Number of allocated objects", float64(stats.AllocObjects)); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "goroutines", "Number of goroutines", float64(stats.NumGoroutines)); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_bytes_read_total", "Total bytes read", stats.BytesRead); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_bytes_written_total", "Total bytes written", stats.BytesWritten); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_read_operations_total", "Total read operations", stats.ReadsCompleted); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_write_operations_total", "Total write operations", stats.WritesCompleted); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "gc_runs_total", "Total garbage collection runs", uint64(stats.GCRuns)); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "gc_pause_nanoseconds", "Last GC pause time in nanoseconds", float64(stats.LastGCTimeNs)); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "cpu_count", "Number of CPUs", float64(stats.NumCPU)); err != nil {
			return err
		}
	}

	return nil
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

// writeHistogram writes histogram metrics from timing data. Prometheus
// histogram buckets are cumulative.
func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name

	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	buckets := th.GetBuckets()
	var cumulative uint64

	cumulative += buckets["0-1ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"0.001\"} %d\n", metricName, cumulative); err != nil {
		return err
	}
	cumulative += buckets["1-10ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"0.01\"} %d\n", metricName, cumulative); err != nil {
		return err
	}
	cumulative += buckets["10-100ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"0.1\"} %d\n", metricName, cumulative); err != nil {
		return err
	}
	cumulative += buckets["100-1000ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"1.0\"} %d\n", metricName, cumulative); err != nil {
		return err
	}
	cumulative += buckets[">1000ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", metricName, cumulative); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative); err != nil {
		return err
	}

	return nil
}

// writePercentiles writes percentile metrics as gauges.
func (pe *PrometheusExporter) writePercentiles(w io.Writer, baseName string, th *TimingHistogram) error {
	percentiles := th.GetPercentiles()

	if err := pe.writeGauge(w, baseName+"_p50", fmt.Sprintf("50th percentile of %s", baseName), percentiles["p50"].Seconds()); err != nil {
		return err
	}
	if err := pe.writeGauge(w, baseName+"_p95", fmt.Sprintf("95th percentile of %s", baseName), percentiles["p95"].Seconds()); err != nil {
		return err
	}
	if err := pe.writeGauge(w, baseName+"_p99", fmt.Sprintf("99th percentile of %s", baseName), percentiles["p99"].Seconds()); err != nil {
		return err
	}

	return nil
}
