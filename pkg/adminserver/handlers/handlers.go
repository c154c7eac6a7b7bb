package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mnohosten/pagestore/pkg/metrics"
	"github.com/mnohosten/pagestore/pkg/storage"
	"github.com/mnohosten/pagestore/pkg/taskrunner"
)

// Handlers holds the engine and metrics collector the admin endpoints
// report on. Engine reads are offloaded to the workers pool so request
// goroutines await a result instead of taking storage latches
// themselves.
type Handlers struct {
	engine    *storage.Engine
	collector *metrics.MetricsCollector
	workers   *taskrunner.Pool
}

// New creates a new Handlers instance.
func New(engine *storage.Engine, collector *metrics.MetricsCollector, workers *taskrunner.Pool) *Handlers {
	return &Handlers{engine: engine, collector: collector, workers: workers}
}

// NotFoundError reports a missing resource (e.g. a file not registered
// with the catalog).
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Resource }

// BadRequestError reports a malformed request.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorType := "InternalError"

	switch err.(type) {
	case *BadRequestError:
		statusCode = http.StatusBadRequest
		errorType = "BadRequest"
	case *NotFoundError:
		statusCode = http.StatusNotFound
		errorType = "NotFound"
	}

	response := map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": err.Error(),
		"code":    statusCode,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func writeSuccess(w http.ResponseWriter, result interface{}) {
	response := map[string]interface{}{"ok": true, "result": result}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
