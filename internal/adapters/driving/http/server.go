// Package http is the driving HTTP adapter: a thin translation layer over
// the engine's services implementing the public API surface. No business
// logic lives here; handlers decode, delegate, and map domain errors to
// status codes.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
	"github.com/scarab-search/scarab-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	resetKey   string

	// Services
	indexAdminService driving.IndexAdminService
	documentService   driving.DocumentService
	searchService     driving.SearchService

	// Infrastructure
	queue       driven.PersistenceQueue
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration.
type Config struct {
	Host     string
	Port     int
	Version  string
	ResetKey string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg Config,
	indexAdminService driving.IndexAdminService,
	documentService driving.DocumentService,
	searchService driving.SearchService,
	queue driven.PersistenceQueue,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		resetKey:          cfg.ResetKey,
		indexAdminService: indexAdminService,
		documentService:   documentService,
		searchService:     searchService,
		queue:             queue,
		db:                db,
		redisClient:       redisClient,
	}

	s.setupRoutes()

	handler := NewRecoveryMiddleware().Handler(
		NewLoggingMiddleware().Handler(s.router))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Index lifecycle
	s.router.HandleFunc("POST /indices", s.handleCreateIndex)
	s.router.HandleFunc("GET /indices", s.handleListIndices)
	s.router.HandleFunc("GET /indices/{name}", s.handleGetIndex)
	s.router.HandleFunc("DELETE /indices/{name}", s.handleDeleteIndex)
	s.router.HandleFunc("PUT /indices/{name}/settings", s.handleUpdateSettings)
	s.router.HandleFunc("PUT /indices/{name}/mappings", s.handleUpdateMappings)
	s.router.HandleFunc("POST /indices/{name}/_rebuild_index", s.handleRebuildIndex)

	// Documents
	s.router.HandleFunc("POST /indices/{name}/documents", s.handleIndexDocument)
	s.router.HandleFunc("PUT /indices/{name}/documents/{id}", s.handleUpdateDocument)
	s.router.HandleFunc("DELETE /indices/{name}/documents/{id}", s.handleDeleteDocument)
	s.router.HandleFunc("POST /indices/{name}/documents/_bulk", s.handleBulkIndex)
	s.router.HandleFunc("DELETE /indices/{name}/documents/_query", s.handleDeleteByQuery)
	s.router.HandleFunc("POST /indices/{name}/documents/_delete_by_query", s.handleDeleteByQuery)

	// Search
	s.router.HandleFunc("POST /indices/{name}/_search", s.handleSearch)
	s.router.HandleFunc("POST /indices/{name}/_search/_suggest", s.handleSuggest)

	// Destructive full reset, guarded by RESET_KEY
	s.router.HandleFunc("POST /_reset", s.handleReset)
}

// Start starts the HTTP server with graceful shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
