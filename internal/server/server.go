package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sportsched/schedgraph/pkg/knowledge"
)

// Server holds the HTTP interface and the underlying knowledge repository.
type Server struct {
	repo *knowledge.Repository

	httpServer *http.Server
	authToken  string
	logger     *slog.Logger
}

// NewServer initializes the HTTP server around an existing repository.
// The repository's store must be opened before passing it here.
func NewServer(repo *knowledge.Repository, httpAddr string, authToken string) (*Server, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}

	s := &Server{
		repo:      repo,
		authToken: authToken,
		logger:    slog.Default(),
	}

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Chain middlewares: Recovery -> Logging -> Auth -> Mux
	// Order matters! Recovery must be outer-most to catch everything.

	var handler http.Handler = mux

	// 1. Auth (Inner)
	handler = s.authMiddleware(handler)

	// 2. Logging (Middle) - Logs duration and status
	handler = s.LoggingMiddleware(handler)

	// 3. Recovery (Outer) - Catches panics
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)
	s.httpServer = &http.Server{
		Addr:    httpAddr,
		Handler: rootMux,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully. It does NOT close the store
// (main handles that for proper lifecycle management).
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown of HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	store := s.repo.Store()
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"nodes":         store.NodeCount(),
		"relationships": store.RelationshipCount(),
	})
}
