// Package server provides the health/ready/metrics HTTP shell every
// worker binds on its METRICS_PORT. It is adapted from the reference
// service's pkg/server: a wrapped http.Server with explicit timeouts,
// built from a Config, whose Start serves until its context is canceled
// and then shuts down gracefully, with the
// recommendation-API routes and rate-limiting middleware dropped (this
// system has no REST API surface beyond health/ready/metrics, §10.4 of
// SPEC_FULL.md).
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the health/ready/metrics HTTP shell for one worker process.
type Server struct {
	config     Config
	httpServer *http.Server
	registry   *prometheus.Registry

	mu    sync.RWMutex
	ready bool
}

// New builds a Server for config, serving metrics from registry.
func New(config Config, registry *prometheus.Registry) *Server {
	s := &Server{config: config, registry: registry}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		MaxHeaderBytes: 1 << 16,
	}

	return s
}

// SetReady marks the server ready or not-ready for /ready probes.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// within config.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
