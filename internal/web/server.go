// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package web serves the review API over HTTP.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docconform/internal/version"

	// Register the report formatters.
	_ "docconform/internal/report/csv"
	_ "docconform/internal/report/json"
	_ "docconform/internal/report/text"
	_ "docconform/internal/report/xlsx"
	_ "docconform/internal/report/yaml"
)

const (
	defaultPort  = 8080
	maxPortProbe = 10
)

// Server wraps the HTTP server with the wired router.
type Server struct {
	httpServer *http.Server
	port       int
	logger     *slog.Logger
}

// NewServer builds the router and the HTTP server around the handler.
// The port must already be validated and available.
func NewServer(handler *Handler, port int, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	handler.Register(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/version", func(w http.ResponseWriter, req *http.Request) {
		handler.writeJSON(w, http.StatusOK, map[string]string{
			"name":    "docconform",
			"version": version.Version,
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		port:   port,
		logger: logger,
	}
}

// Port returns the port the server binds.
func (s *Server) Port() int {
	return s.port
}

// Start serves until the context is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server starting",
			"address", fmt.Sprintf("http://localhost:%d", s.port),
			"version", version.Version)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("web server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}

// requestLogger logs each request after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}

// ValidatePort parses and range-checks a port string.
func ValidatePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid port '%s': must be a number", raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return port, nil
}

// FindAvailablePort returns the requested port if it is free, otherwise
// probes the next ports in sequence. A port the user asked for
// explicitly is never substituted.
func FindAvailablePort(requested int, explicit bool, logger *slog.Logger) (int, error) {
	if isPortAvailable(requested) {
		return requested, nil
	}
	if explicit {
		return 0, fmt.Errorf("port %d is already in use", requested)
	}
	for offset := 1; offset < maxPortProbe; offset++ {
		candidate := requested + offset
		if candidate > 65535 {
			break
		}
		if isPortAvailable(candidate) {
			logger.Warn("port in use, falling back", "requested", requested, "using", candidate)
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", requested, requested+maxPortProbe-1)
}

func isPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
