// Package server wires the broker's HTTP routes and manages the process
// listener's lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"framebroker/internal/bus"
	"framebroker/internal/config"
	"framebroker/internal/health"
	"framebroker/internal/ingest"
	"framebroker/internal/subscribe"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	registry   *bus.Registry
}

// New creates a Server from cfg. The server is not started until Start is
// called.
func New(cfg *config.Config) *Server {
	mux := http.NewServeMux()

	registry := bus.NewRegistry()

	ingestHandler := ingest.NewHandler(registry, cfg.MaxFrameBytes, cfg.IngestTimeout)
	mux.Handle("/ingest/", ingestHandler)

	subscribeHandler := subscribe.NewHandler(registry, cfg.Capacity)
	mux.Handle("/ws/", subscribeHandler)

	healthHandler := health.NewHandler(registry)
	mux.Handle("/health", healthHandler)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	return &Server{
		httpServer: httpServer,
		registry:   registry,
	}
}

// Registry exposes the broker's Registry, primarily for tests.
func (s *Server) Registry() *bus.Registry { return s.registry }

// Start begins serving HTTP requests. Blocks until the server stops or
// encounters an error; returns http.ErrServerClosed on a graceful
// Shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ShutdownWithTimeout stops the server with a fixed 5-second timeout.
func (s *Server) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
