package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mnohosten/pagestore/pkg/storage"
)

// ResourceTracker reports the process's runtime footprint (heap, stack,
// goroutines, GC) alongside cumulative page I/O counters fed by a
// TrackedFileManager. A background goroutine samples the runtime at a
// fixed interval so the admin surface can show short-term trends, not
// just instantaneous values.
type ResourceTracker struct {
	mu      sync.RWMutex
	enabled bool

	pagesRead    uint64
	pagesWritten uint64

	sampleInterval time.Duration
	maxSamples     int
	samples        []ResourceSample
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// ResourceSample is one point-in-time runtime snapshot.
type ResourceSample struct {
	Timestamp     time.Time
	HeapInUse     uint64
	StackInUse    uint64
	NumGoroutines int
	PagesRead     uint64
	PagesWritten  uint64
	GCRuns        uint32
}

// ResourceStats is the combined runtime + page I/O snapshot served over
// /_metrics.
type ResourceStats struct {
	AllocBytes   uint64  `json:"alloc_bytes"`
	AllocMB      float64 `json:"alloc_mb"`
	HeapInUse    uint64  `json:"heap_in_use_bytes"`
	HeapInUseMB  float64 `json:"heap_in_use_mb"`
	StackInUse   uint64  `json:"stack_in_use_bytes"`
	StackInUseMB float64 `json:"stack_in_use_mb"`
	AllocObjects uint64  `json:"alloc_objects"`

	NumGoroutines int `json:"num_goroutines"`

	PagesRead       uint64 `json:"pages_read"`
	PagesWritten    uint64 `json:"pages_written"`
	BytesRead       uint64 `json:"bytes_read"`
	BytesWritten    uint64 `json:"bytes_written"`
	ReadsCompleted  uint64 `json:"reads_completed"`
	WritesCompleted uint64 `json:"writes_completed"`

	GCPauseTotalMs float64 `json:"gc_pause_total_ms"`
	GCRuns         uint32  `json:"gc_runs"`
	LastGCTimeNs   uint64  `json:"last_gc_time_ns"`

	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
}

// ResourceTrackerConfig sizes the sampling loop.
type ResourceTrackerConfig struct {
	Enabled        bool
	SampleInterval time.Duration
	MaxSamples     int
}

// DefaultResourceTrackerConfig samples once a second and keeps one
// minute of history.
func DefaultResourceTrackerConfig() *ResourceTrackerConfig {
	return &ResourceTrackerConfig{
		Enabled:        true,
		SampleInterval: time.Second,
		MaxSamples:     60,
	}
}

// NewResourceTracker starts a tracker. A nil config uses
// DefaultResourceTrackerConfig.
func NewResourceTracker(config *ResourceTrackerConfig) *ResourceTracker {
	if config == nil {
		config = DefaultResourceTrackerConfig()
	}

	rt := &ResourceTracker{
		enabled:        config.Enabled,
		sampleInterval: config.SampleInterval,
		maxSamples:     config.MaxSamples,
		samples:        make([]ResourceSample, 0, config.MaxSamples),
		stopCh:         make(chan struct{}),
	}
	if rt.enabled {
		rt.startSampling()
	}
	return rt
}

// Enable restarts sampling after a Disable.
func (rt *ResourceTracker) Enable() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.enabled {
		rt.enabled = true
		rt.startSampling()
	}
}

// Disable stops the sampling goroutine and waits for it to exit. Page
// I/O counters keep accumulating; only sampling pauses.
func (rt *ResourceTracker) Disable() {
	rt.mu.Lock()
	if !rt.enabled {
		rt.mu.Unlock()
		return
	}
	rt.enabled = false
	close(rt.stopCh)
	rt.stopCh = make(chan struct{})
	rt.mu.Unlock()
	// The sampler takes rt.mu in takeSample, so wait without holding it.
	rt.wg.Wait()
}

// IsEnabled reports whether the sampling loop is running.
func (rt *ResourceTracker) IsEnabled() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.enabled
}

func (rt *ResourceTracker) startSampling() {
	stop := rt.stopCh
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		ticker := time.NewTicker(rt.sampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rt.takeSample()
			case <-stop:
				return
			}
		}
	}()
}

func (rt *ResourceTracker) takeSample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sample := ResourceSample{
		Timestamp:     time.Now(),
		HeapInUse:     m.HeapInuse,
		StackInUse:    m.StackInuse,
		NumGoroutines: runtime.NumGoroutine(),
		PagesRead:     atomic.LoadUint64(&rt.pagesRead),
		PagesWritten:  atomic.LoadUint64(&rt.pagesWritten),
		GCRuns:        m.NumGC,
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.samples) >= rt.maxSamples {
		rt.samples = rt.samples[1:]
	}
	rt.samples = append(rt.samples, sample)
}

// RecordPageRead credits one successful page-sized read.
func (rt *ResourceTracker) RecordPageRead() {
	atomic.AddUint64(&rt.pagesRead, 1)
}

// RecordPageWrite credits one successful page-sized write.
func (rt *ResourceTracker) RecordPageWrite() {
	atomic.AddUint64(&rt.pagesWritten, 1)
}

// GetStats reads the runtime and combines it with the page I/O
// counters.
func (rt *ResourceTracker) GetStats() *ResourceStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	pagesRead := atomic.LoadUint64(&rt.pagesRead)
	pagesWritten := atomic.LoadUint64(&rt.pagesWritten)

	return &ResourceStats{
		AllocBytes:   m.TotalAlloc,
		AllocMB:      float64(m.TotalAlloc) / 1024 / 1024,
		HeapInUse:    m.HeapInuse,
		HeapInUseMB:  float64(m.HeapInuse) / 1024 / 1024,
		StackInUse:   m.StackInuse,
		StackInUseMB: float64(m.StackInuse) / 1024 / 1024,
		AllocObjects: m.Mallocs - m.Frees,

		NumGoroutines: runtime.NumGoroutine(),

		PagesRead:       pagesRead,
		PagesWritten:    pagesWritten,
		BytesRead:       pagesRead * storage.PageSize,
		BytesWritten:    pagesWritten * storage.PageSize,
		ReadsCompleted:  pagesRead,
		WritesCompleted: pagesWritten,

		GCPauseTotalMs: float64(m.PauseTotalNs) / 1e6,
		GCRuns:         m.NumGC,
		LastGCTimeNs:   m.LastGC,

		NumCPU:    runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}

// GetSamples returns a copy of the retained sample history.
func (rt *ResourceTracker) GetSamples() []ResourceSample {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	samples := make([]ResourceSample, len(rt.samples))
	copy(samples, rt.samples)
	return samples
}

// GetTrends summarises the sample window: heap and goroutine growth
// from the oldest to the newest sample, plus page I/O throughput across
// the window.
func (rt *ResourceTracker) GetTrends() map[string]interface{} {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	if len(rt.samples) == 0 {
		return map[string]interface{}{"samples": 0}
	}

	first := rt.samples[0]
	last := rt.samples[len(rt.samples)-1]
	window := last.Timestamp.Sub(first.Timestamp).Seconds()

	var pageReadRate, pageWriteRate float64
	if window > 0 {
		pageReadRate = float64(last.PagesRead-first.PagesRead) / window
		pageWriteRate = float64(last.PagesWritten-first.PagesWritten) / window
	}

	return map[string]interface{}{
		"samples":               len(rt.samples),
		"time_range_sec":        window,
		"heap_growth_bytes":     int64(last.HeapInUse) - int64(first.HeapInUse),
		"goroutine_growth":      last.NumGoroutines - first.NumGoroutines,
		"current_heap_bytes":    last.HeapInUse,
		"current_goroutines":    last.NumGoroutines,
		"pages_read_per_sec":    pageReadRate,
		"pages_written_per_sec": pageWriteRate,
	}
}

// ClearSamples drops the retained history.
func (rt *ResourceTracker) ClearSamples() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.samples = rt.samples[:0]
}

// Close stops the tracker.
func (rt *ResourceTracker) Close() {
	rt.Disable()
}
