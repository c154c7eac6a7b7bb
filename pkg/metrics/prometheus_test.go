package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mnohosten/pagestore/pkg/storage"
)

func TestPrometheusExporter_BasicMetrics(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector, nil, nil)

	collector.RecordRequest(100*time.Millisecond, true)
	collector.RecordRequest(10*time.Millisecond, true)
	collector.RecordRequest(50*time.Millisecond, false)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "# TYPE pagestore_requests_total counter") {
		t.Error("missing requests_total counter type")
	}
	if !strings.Contains(output, "pagestore_requests_total 3") {
		t.Error("expected requests_total to be 3")
	}
	if !strings.Contains(output, "pagestore_requests_failed_total 1") {
		t.Error("expected requests_failed_total to be 1")
	}
}

func TestPrometheusExporter_Histograms(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector, nil, nil)

	for _, d := range []time.Duration{500 * time.Microsecond, 5 * time.Millisecond, 50 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second} {
		collector.RecordRequest(d, true)
	}

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "# TYPE pagestore_request_duration_seconds histogram") {
		t.Error("missing request_duration_seconds histogram type")
	}
	if !strings.Contains(output, `pagestore_request_duration_seconds_bucket{le="+Inf"} 5`) {
		t.Error("expected the +Inf bucket to accumulate all 5 samples")
	}
	if !strings.Contains(output, "pagestore_request_duration_seconds_p50") {
		t.Error("missing p50 percentile gauge")
	}
}

func TestPrometheusExporter_BufferPoolStats(t *testing.T) {
	collector := NewMetricsCollector()
	statsFn := func() storage.BufferPoolStats {
		return storage.BufferPoolStats{
			Hits: 7, Misses: 3, IOErrors: 1, Allocations: 2, Writes: 4, BufferFull: 1, NumFrames: 16,
		}
	}
	exporter := NewPrometheusExporter(collector, nil, statsFn)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"pagestore_buffer_pool_hits_total 7",
		"pagestore_buffer_pool_misses_total 3",
		"pagestore_buffer_pool_io_errors_total 1",
		"pagestore_buffer_pool_allocations_total 2",
		"pagestore_buffer_pool_writes_total 4",
		"pagestore_buffer_pool_exhausted_total 1",
		"pagestore_buffer_pool_frames 16",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing metric line %q in:\n%s", want, output)
		}
	}
}

func TestPrometheusExporter_NoBufferPoolStatsFn(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector, nil, nil)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if strings.Contains(buf.String(), "buffer_pool") {
		t.Error("should not emit buffer pool metrics when bufferPoolStats is nil")
	}
}

func TestPrometheusExporter_ResourceTracker(t *testing.T) {
	collector := NewMetricsCollector()
	tracker := NewResourceTracker(&ResourceTrackerConfig{Enabled: false})
	exporter := NewPrometheusExporter(collector, tracker, nil)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "pagestore_goroutines") {
		t.Error("missing goroutines gauge")
	}
	if !strings.Contains(output, "pagestore_cpu_count") {
		t.Error("missing cpu_count gauge")
	}
}

func TestPrometheusExporter_Namespace(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector, nil, nil)
	exporter.SetNamespace("custom")

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if !strings.Contains(buf.String(), "custom_requests_total") {
		t.Error("expected custom namespace prefix to apply")
	}
}

func TestPrometheusExporter_Connections(t *testing.T) {
	collector := NewMetricsCollector()
	exporter := NewPrometheusExporter(collector, nil, nil)

	collector.RecordConnectionStart()
	collector.RecordConnectionStart()
	collector.RecordConnectionEnd()

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "pagestore_active_connections 1") {
		t.Error("expected active_connections to be 1 after one start and one end")
	}
	if !strings.Contains(output, "pagestore_connections_total 2") {
		t.Error("expected connections_total to be 2")
	}
}
