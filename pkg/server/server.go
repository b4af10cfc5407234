package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mnohosten/laura-feed/pkg/database"
	"github.com/mnohosten/laura-feed/pkg/feed"
	"github.com/mnohosten/laura-feed/pkg/feed/lauradb"
	gql "github.com/mnohosten/laura-feed/pkg/graphql"
	"github.com/mnohosten/laura-feed/pkg/metrics"
	"github.com/mnohosten/laura-feed/pkg/replication"
	"github.com/mnohosten/laura-feed/pkg/server/handlers"
)

// Server hosts the change-stream WebSocket gateway (and, optionally, the
// GraphQL watchCollection subscription) over a single feed.Container. It
// carries no REST document/collection CRUD surface of its own: a host
// writes through the database and lauradb.Source directly and the
// subscriptions this server exposes
// observe those writes via the shared oplog.
type Server struct {
	config              *Config
	db                  *database.Database
	oplog               *replication.Oplog
	feedSource          *lauradb.Source
	feedContainer       *feed.Container
	router              *chi.Mux
	httpSrv             *http.Server
	startTime           time.Time
	metricsCollector    *metrics.MetricsCollector
	resourceTracker     *metrics.ResourceTracker
	promExporter        *metrics.PrometheusExporter
	changeStreamManager *handlers.ChangeStreamManager
}

// New creates a new HTTP server instance
func New(config *Config) (*Server, error) {
	// Open database
	dbConfig := &database.Config{
		DataDir:        config.DataDir,
		BufferPoolSize: config.BufferSize,
	}
	db, err := database.Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Open the oplog change streams and tailing cursors read from, and
	// lauradb.Source's write helpers append to, so both see the same writes.
	oplogPath := filepath.Join(config.DataDir, "oplog.bin")
	oplog, err := replication.NewOplog(oplogPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open oplog: %w", err)
	}
	feedSource := lauradb.NewSource(db, oplog, "default")
	feedContainer := feed.NewContainer(feedSource, feed.JSONConverter{}, nil, nil)

	// Create metrics collector and resource tracker
	metricsCollector := metrics.NewMetricsCollector()
	resourceTracker := metrics.NewResourceTracker(nil) // Use default config
	promExporter := metrics.NewPrometheusExporter(metricsCollector, resourceTracker)
	feedContainer.SetMetrics(feedMetricsRecorder{collector: metricsCollector})

	// Create server instance
	srv := &Server{
		config:           config,
		db:               db,
		oplog:            oplog,
		feedSource:       feedSource,
		feedContainer:    feedContainer,
		router:           chi.NewRouter(),
		startTime:        time.Now(),
		metricsCollector: metricsCollector,
		resourceTracker:  resourceTracker,
		promExporter:     promExporter,
	}

	// Setup middleware
	srv.setupMiddleware()

	// Setup routes
	srv.setupRoutes()

	// Setup GraphQL routes if enabled
	if config.EnableGraphQL {
		if err := srv.setupGraphQLRoutes(); err != nil {
			return nil, fmt.Errorf("failed to setup GraphQL routes: %w", err)
		}
	}

	// Create HTTP server
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

// setupMiddleware configures HTTP middleware stack
func (s *Server) setupMiddleware() {
	// Request ID middleware
	s.router.Use(middleware.RequestID)

	// Real IP middleware
	s.router.Use(middleware.RealIP)

	// Recovery middleware to recover from panics
	s.router.Use(middleware.Recoverer)

	// Request logging
	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}

	// CORS middleware
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	// Request size limit
	s.router.Use(s.requestSizeLimitMiddleware)

	// Timeout middleware
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// setupRoutes configures HTTP routes: the change-stream gateway, a bare
// health probe, and the Prometheus metrics endpoint.
func (s *Server) setupRoutes() {
	h := handlers.New()

	// Setup WebSocket routes for change streams, backed by the same
	// container (and oplog) the GraphQL watchCollection subscription
	// shares.
	s.changeStreamManager = handlers.NewChangeStreamManager(s.feedContainer, s.feedSource)
	handlers.SetupWebSocketRoutes(s.router, h, s.changeStreamManager)
	fmt.Println("✅ WebSocket change streams enabled")

	s.router.Get("/_health", s.handleHealth)
	s.router.Get("/_metrics", s.handlePrometheusMetrics)
}

// handleHealth reports liveness and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// setupGraphQLRoutes configures GraphQL routes
func (s *Server) setupGraphQLRoutes() error {
	// Create GraphQL handler
	graphqlHandler, err := gql.NewHandler(s.feedContainer)
	if err != nil {
		return fmt.Errorf("failed to create GraphQL handler: %w", err)
	}

	// Mount GraphQL endpoint
	s.router.Post("/graphql", graphqlHandler.ServeHTTP)

	// Mount GraphiQL playground (interactive UI)
	s.router.Get("/graphiql", gql.GraphiQLHandler())

	fmt.Println("✅ GraphQL API enabled")
	fmt.Printf("   GraphQL endpoint: /graphql\n")
	fmt.Printf("   GraphiQL playground: /graphiql\n")

	return nil
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestSizeLimitMiddleware limits request body size
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// handlePrometheusMetrics handles the Prometheus metrics endpoint
func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	// Set Prometheus text format content type
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write metrics
	if err := s.promExporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("Error writing metrics: %v", err), http.StatusInternalServerError)
		return
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.feedContainer.Start()

	fmt.Printf("🚀 laura-feed server starting on http://%s:%d\n", s.config.Host, s.config.Port)
	fmt.Printf("📁 Data directory: %s\n", s.config.DataDir)
	fmt.Printf("💾 Buffer pool size: %d pages\n", s.config.BufferSize)
	if s.changeStreamManager != nil {
		fmt.Printf("🔌 WebSocket endpoint: ws://%s:%d/_ws/watch\n", s.config.Host, s.config.Port)
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\n⚠️  Received signal: %v\n", sig)
		return s.Shutdown()
	}
}

// GetDatabase returns the database instance
func (s *Server) GetDatabase() *database.Database {
	return s.db
}

// GetFeedSource returns the in-process driver backing this server's
// subscriptions, so a host can write documents through it and have the
// writes observed by whatever is subscribed.
func (s *Server) GetFeedSource() *lauradb.Source {
	return s.feedSource
}

// feedMetricsRecorder adapts *metrics.MetricsCollector to feed.MetricsRecorder
// so the change-feed container's subscription and delivery counts flow into
// the same collector queries/inserts/deletes already report through.
type feedMetricsRecorder struct {
	collector *metrics.MetricsCollector
}

func (r feedMetricsRecorder) EventDelivered()      { r.collector.RecordFeedEventDelivered() }
func (r feedMetricsRecorder) EventFailed()         { r.collector.RecordFeedEventFailed() }
func (r feedMetricsRecorder) SubscriptionStarted() { r.collector.RecordFeedSubscriptionStart() }
func (r feedMetricsRecorder) SubscriptionStopped() { r.collector.RecordFeedSubscriptionStop() }

// GetMetricsCollector returns the metrics collector
func (s *Server) GetMetricsCollector() *metrics.MetricsCollector {
	return s.metricsCollector
}

// GetResourceTracker returns the resource tracker
func (s *Server) GetResourceTracker() *metrics.ResourceTracker {
	return s.resourceTracker
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	fmt.Println("🛑 Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		fmt.Printf("❌ Server shutdown error: %v\n", err)
	}

	// Stop the feed container: cancels every change-stream/tailing
	// subscription (WebSocket and GraphQL alike) before their shared
	// oplog is closed below.
	if s.feedContainer != nil {
		s.feedContainer.Stop()
	}

	// Close change stream manager and all active WebSocket connections
	if s.changeStreamManager != nil {
		if err := s.changeStreamManager.Close(); err != nil {
			fmt.Printf("⚠️  Warning: Error closing change stream manager: %v\n", err)
		}
	}

	// Close the oplog change streams and lauradb.Source writes share
	if s.oplog != nil {
		if err := s.oplog.Close(); err != nil {
			fmt.Printf("⚠️  Warning: Error closing oplog: %v\n", err)
		}
	}

	// Stop resource tracker
	if s.resourceTracker != nil {
		s.resourceTracker.Disable()
	}

	// Close database
	if err := s.db.Close(); err != nil {
		fmt.Printf("❌ Database close error: %v\n", err)
		return err
	}

	fmt.Println("✅ Server shutdown complete")
	return nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	}
	WriteJSON(w, statusCode, response)
}

// WriteSuccess writes a success response
func WriteSuccess(w http.ResponseWriter, result interface{}) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
	}
	WriteJSON(w, http.StatusOK, response)
}
