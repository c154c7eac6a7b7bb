package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mnohosten/pagestore/pkg/metrics"
	"github.com/mnohosten/pagestore/pkg/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatsHub streams periodic buffer-pool/request-metrics snapshots to
// every connected /ws/stats client. Every client gets the same
// broadcast tick; there are no per-client subscriptions.
type StatsHub struct {
	engine    *storage.Engine
	collector *metrics.MetricsCollector
	interval  time.Duration

	mu    sync.Mutex
	conns map[string]*statsConn
}

type statsConn struct {
	id         string
	conn       *websocket.Conn
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewStatsHub creates a hub that pushes a stats snapshot every interval.
func NewStatsHub(engine *storage.Engine, collector *metrics.MetricsCollector, interval time.Duration) *StatsHub {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StatsHub{
		engine:    engine,
		collector: collector,
		interval:  interval,
		conns:     make(map[string]*statsConn),
	}
}

func (h *StatsHub) snapshot() map[string]interface{} {
	bp := h.engine.BufferPoolStats()
	snapshot := h.collector.GetMetrics()
	snapshot["buffer_pool"] = map[string]interface{}{
		"hits":        bp.Hits,
		"misses":      bp.Misses,
		"io_errors":   bp.IOErrors,
		"allocations": bp.Allocations,
		"writes":      bp.Writes,
		"buffer_full": bp.BufferFull,
		"num_frames":  bp.NumFrames,
	}
	return snapshot
}

// ServeWS upgrades the request and streams stats snapshots until the
// client disconnects.
func (h *StatsHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stats websocket: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	id := fmt.Sprintf("ws-%d", time.Now().UnixNano())
	sc := &statsConn{id: id, conn: conn, cancelFunc: cancel}

	h.mu.Lock()
	h.conns[id] = sc
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, id)
		h.mu.Unlock()
		cancel()
		conn.Close()
	}()

	// Reader goroutine: a client that disconnects (or sends anything,
	// since this stream is one-directional) ends the session.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sc.mu.Lock()
			err := conn.WriteJSON(h.snapshot())
			sc.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close disconnects every active client.
func (h *StatsHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sc := range h.conns {
		sc.cancelFunc()
		sc.conn.Close()
	}
	h.conns = make(map[string]*statsConn)
	return nil
}

// ClientCount reports how many /ws/stats clients are currently connected.
func (h *StatsHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
