package adminserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graphql-go/graphql"

	"github.com/mnohosten/pagestore/pkg/adminserver/handlers"
	"github.com/mnohosten/pagestore/pkg/metrics"
	"github.com/mnohosten/pagestore/pkg/storage"
	"github.com/mnohosten/pagestore/pkg/taskrunner"
)

// Server is the admin/observability HTTP front end for a storage
// engine. It never opens or closes the engine itself; the caller owns
// that lifecycle and passes a running *storage.Engine to New.
type Server struct {
	config           *Config
	engine           *storage.Engine
	router           *chi.Mux
	httpSrv          *http.Server
	startTime        time.Time
	metricsCollector *metrics.MetricsCollector
	resourceTracker  *metrics.ResourceTracker
	promExporter     *metrics.PrometheusExporter
	statsHub         *handlers.StatsHub
	workers          *taskrunner.Pool
	graphqlSchema    *graphql.Schema
}

// New creates an admin server bound to engine. The engine must already
// be open; Shutdown does not close it.
func New(config *Config, engine *storage.Engine) (*Server, error) {
	if config.EnableTLS {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.TLSCertFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS certificate file not found: %s", config.TLSCertFile)
		}
		if _, err := os.Stat(config.TLSKeyFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS key file not found: %s", config.TLSKeyFile)
		}
	}

	metricsCollector := metrics.NewMetricsCollector()
	resourceTracker := config.Tracker
	if resourceTracker == nil {
		resourceTracker = metrics.NewResourceTracker(nil)
	}
	promExporter := metrics.NewPrometheusExporter(metricsCollector, resourceTracker, engine.BufferPoolStats)

	srv := &Server{
		config:           config,
		engine:           engine,
		router:           chi.NewRouter(),
		startTime:        time.Now(),
		metricsCollector: metricsCollector,
		resourceTracker:  resourceTracker,
		promExporter:     promExporter,
		statsHub:         handlers.NewStatsHub(engine, metricsCollector, config.StatsInterval),
		workers:          taskrunner.New(nil),
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	if config.EnableGraphQL {
		if err := srv.setupGraphQLRoutes(); err != nil {
			return nil, fmt.Errorf("failed to setup GraphQL routes: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return srv, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	s.router.Use(s.requestSizeLimitMiddleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// metricsMiddleware records every request's latency and outcome with
// the metrics collector.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metricsCollector.RecordConnectionStart()
		defer s.metricsCollector.RecordConnectionEnd()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		success := ww.Status() < 500
		s.metricsCollector.RecordRequest(time.Since(start), success)
	})
}

func (s *Server) setupRoutes() {
	h := handlers.New(s.engine, s.metricsCollector, s.workers)

	s.router.Get("/_health", s.jsonContentType(h.Health(s.startTime)))
	s.router.Get("/_stats", s.jsonContentType(h.GetStats))
	s.router.Get("/_metrics", s.handlePrometheusMetrics)
	s.router.Get("/ws/stats", s.statsHub.ServeWS)
}

func (s *Server) setupGraphQLRoutes() error {
	schema, err := newGraphQLSchema(s.engine, s.workers)
	if err != nil {
		return fmt.Errorf("failed to build GraphQL schema: %w", err)
	}
	s.graphqlSchema = &schema

	s.router.Post("/graphql", graphQLHandler(schema))

	return nil
}

func (s *Server) jsonContentType(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.promExporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("error writing metrics: %v", err), http.StatusInternalServerError)
	}
}

// Start begins serving and blocks until the server stops or an error
// occurs. The caller is responsible for calling Shutdown, typically
// from a signal handler.
func (s *Server) Start() error {
	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpSrv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("admin server error: %w", err)
			return
		}
		errChan <- nil
	}()
	return <-errChan
}

// Shutdown gracefully stops the HTTP server, disconnects stats
// websocket clients and stops the worker pool. It does not close the
// storage engine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.statsHub.Close()
	s.resourceTracker.Disable()
	err := s.httpSrv.Shutdown(ctx)
	s.workers.Shutdown()
	return err
}

// Addr returns the address the server is configured to listen on.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}

// MetricsCollector returns the server's metrics collector.
func (s *Server) MetricsCollector() *metrics.MetricsCollector {
	return s.metricsCollector
}

// ResourceTracker returns the server's resource tracker.
func (s *Server) ResourceTracker() *metrics.ResourceTracker {
	return s.resourceTracker
}
