package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mnohosten/pagestore/pkg/metrics"
	"github.com/mnohosten/pagestore/pkg/storage"
)

func TestStatsHub_StreamsSnapshots(t *testing.T) {
	engine := storage.NewInMemoryEngine(4)
	defer engine.Close()

	collector := metrics.NewMetricsCollector()
	hub := NewStatsHub(engine, collector, 20*time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial stats websocket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot map[string]interface{}
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("failed to read stats snapshot: %v", err)
	}

	if _, ok := snapshot["buffer_pool"]; !ok {
		t.Error("expected buffer_pool in stats snapshot")
	}
	if _, ok := snapshot["requests"]; !ok {
		t.Error("expected requests in stats snapshot")
	}

	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 connected client, got %d", hub.ClientCount())
	}
}

func TestStatsHub_ClosedOnHubClose(t *testing.T) {
	engine := storage.NewInMemoryEngine(4)
	defer engine.Close()

	collector := metrics.NewMetricsCollector()
	hub := NewStatsHub(engine, collector, 10*time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial stats websocket: %v", err)
	}
	defer conn.Close()

	time.Sleep(30 * time.Millisecond)
	hub.Close()
	time.Sleep(30 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 connected clients after Close, got %d", hub.ClientCount())
	}
}
