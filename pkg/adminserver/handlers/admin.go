package handlers

import (
	"net/http"
	"time"

	"github.com/mnohosten/pagestore/pkg/storage"
)

// Health returns a health check handler.
func (h *Handlers) Health(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := map[string]interface{}{
			"status": "healthy",
			"uptime": time.Since(startTime).String(),
			"time":   time.Now().Format(time.RFC3339),
		}
		writeSuccess(w, result)
	}
}

// GetStats returns a combined snapshot of request metrics, buffer pool
// counters, worker pool counters, and the set of files currently
// registered with the engine's catalog.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	var bp storage.BufferPoolStats
	var fileIDs []storage.FileID
	err := h.workers.DoFunc(r.Context(), func() error {
		bp = h.engine.BufferPoolStats()
		fileIDs = h.engine.Catalog().FileIDs()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	result := h.collector.GetMetrics()
	result["buffer_pool"] = map[string]interface{}{
		"hits":        bp.Hits,
		"misses":      bp.Misses,
		"io_errors":   bp.IOErrors,
		"allocations": bp.Allocations,
		"writes":      bp.Writes,
		"buffer_full": bp.BufferFull,
		"num_frames":  bp.NumFrames,
	}
	result["registered_files"] = len(fileIDs)

	ws := h.workers.Stats()
	result["task_runner"] = map[string]interface{}{
		"workers":   ws.Workers,
		"submitted": ws.Submitted,
		"active":    ws.Active,
		"completed": ws.Completed,
		"queued":    ws.Queued,
	}

	writeSuccess(w, result)
}
