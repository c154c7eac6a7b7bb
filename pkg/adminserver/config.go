package adminserver

import (
	"time"

	"github.com/mnohosten/pagestore/pkg/metrics"
)

// Config holds the admin HTTP server's own settings. It does not
// include storage.Config — the caller constructs and owns the
// *storage.Engine this server reports on, and passes it to New.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	EnableCORS     bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	EnableLogging  bool
	LogFormat      string

	EnableTLS   bool
	TLSCertFile string
	TLSKeyFile  string

	EnableGraphQL bool

	// StatsInterval controls how often /ws/stats pushes a fresh snapshot
	// to connected clients.
	StatsInterval time.Duration

	// Tracker, when non-nil, is the resource tracker the server reports
	// from — pass the one wired into the engine's file manager so page
	// I/O counters show up on /_metrics. When nil the server creates its
	// own tracker, which then sees runtime stats only.
	Tracker *metrics.ResourceTracker
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 1 * 1024 * 1024,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		EnableLogging:  true,
		LogFormat:      "text",
		EnableTLS:      false,
		EnableGraphQL:  true,
		StatsInterval:  2 * time.Second,
	}
}
