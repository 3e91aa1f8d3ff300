package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/decision"
)

// Decider evaluates one request to a terminal response. Satisfied by
// *decision.Orchestrator.
type Decider interface {
	Decide(ctx context.Context, req *decision.Request) *decision.Response
}

// Server is the HTTP decision endpoint.
type Server struct {
	config  config.ServerConfig
	decider Decider
	logger  *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a decision server. The logger may be nil.
func New(cfg config.ServerConfig, decider Decider, logger *slog.Logger) (*Server, error) {
	if decider == nil {
		return nil, errors.New("server: decider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		decider: decider,
		logger:  logger,
	}, nil
}

// Start serves until ctx is cancelled or the listener fails. Returns nil
// after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server: already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("decision endpoint listening", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.isRunning = false
		srv := s.httpServer
		s.mu.Unlock()

		s.logger.Info("shutting down decision endpoint", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured route and middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/decisions", NewDecisionHandler(s.decider, s.logger))
	mux.Handle("/health", NewHealthHandler())

	var handler http.Handler = mux
	handler = requestLogging(s.logger)(handler)
	handler = requestID(handler)
	handler = recovery(s.logger)(handler)
	return handler
}
