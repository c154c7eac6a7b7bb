package adminserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mnohosten/pagestore/pkg/storage"
)

func newTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	engine := storage.NewInMemoryEngine(16)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestServerTLSConfiguration(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "adminserver-tls-config-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	certFile := filepath.Join(tmpDir, "cert.pem")
	keyFile := filepath.Join(tmpDir, "key.pem")
	if err := GenerateSelfSignedCert(certFile, keyFile, "localhost"); err != nil {
		t.Fatalf("failed to generate certificate: %v", err)
	}

	engine := newTestEngine(t)

	config := DefaultConfig()
	config.Port = 0
	config.EnableTLS = true
	config.TLSCertFile = ""
	config.TLSKeyFile = ""

	if _, err := New(config, engine); err == nil {
		t.Error("expected error when TLS enabled but cert/key not specified")
	}

	config.TLSCertFile = filepath.Join(tmpDir, "nonexistent.pem")
	config.TLSKeyFile = keyFile
	if _, err := New(config, engine); err == nil {
		t.Error("expected error when cert file doesn't exist")
	}

	config.TLSCertFile = certFile
	config.TLSKeyFile = filepath.Join(tmpDir, "nonexistent.key")
	if _, err := New(config, engine); err == nil {
		t.Error("expected error when key file doesn't exist")
	}

	config.TLSCertFile = certFile
	config.TLSKeyFile = keyFile
	srv, err := New(config, engine)
	if err != nil {
		t.Fatalf("failed to create server with TLS: %v", err)
	}
	defer srv.Shutdown(context.Background())

	if !srv.config.EnableTLS {
		t.Error("TLS should be enabled")
	}
}

func TestServerHTTPConnection(t *testing.T) {
	engine := newTestEngine(t)

	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = 18180
	config.EnableTLS = false

	srv, err := New(config, engine)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	go srv.Start()
	defer srv.Shutdown(context.Background())

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s:%d/_health", config.Host, config.Port))
	if err != nil {
		t.Fatalf("failed to connect to HTTP server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}

	var healthResp map[string]interface{}
	if err := json.Unmarshal(body, &healthResp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := healthResp["ok"].(bool); !exists || !ok {
		t.Errorf("expected ok: true, got %v", healthResp["ok"])
	}
}

func TestServerTLSConnection(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "adminserver-tls-conn-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	certFile := filepath.Join(tmpDir, "cert.pem")
	keyFile := filepath.Join(tmpDir, "key.pem")
	if err := GenerateSelfSignedCert(certFile, keyFile, "localhost"); err != nil {
		t.Fatalf("failed to generate certificate: %v", err)
	}

	engine := newTestEngine(t)

	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = 18443
	config.EnableTLS = true
	config.TLSCertFile = certFile
	config.TLSKeyFile = keyFile

	srv, err := New(config, engine)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	go srv.Start()
	defer srv.Shutdown(context.Background())

	time.Sleep(200 * time.Millisecond)

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("https://%s:%d/_health", config.Host, config.Port))
	if err != nil {
		t.Fatalf("failed to connect to HTTPS server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestServerPrometheusEndpoint(t *testing.T) {
	engine := newTestEngine(t)

	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = 18181
	config.EnableGraphQL = false

	srv, err := New(config, engine)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	go srv.Start()
	defer srv.Shutdown(context.Background())

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s:%d/_metrics", config.Host, config.Port))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Error("expected non-empty metrics body")
	}
}

func TestServerGraphQLEndpoint(t *testing.T) {
	engine := newTestEngine(t)

	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = 18182

	srv, err := New(config, engine)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	go srv.Start()
	defer srv.Shutdown(context.Background())

	time.Sleep(200 * time.Millisecond)

	body := `{"query": "{ pageStats { registeredFiles bufferPool { hits } } }"}`
	resp, err := http.Post(
		fmt.Sprintf("http://%s:%d/graphql", config.Host, config.Port),
		"application/json",
		strings.NewReader(body),
	)
	if err != nil {
		t.Fatalf("failed to POST graphql query: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}
