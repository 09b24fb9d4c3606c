package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// shutdownTimeout bounds how long in-flight requests get once the context ends.
const shutdownTimeout = 5 * time.Second

// NewRouter builds the router for api with recovery, logging and per-client rate limiting.
func NewRouter(api Handler, logger *log.Logger, limiter *ClientLimiter) *BasicRouter {
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger), RateLimit(limiter))
	router.Handler(api)
	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	return router
}

// Server runs an [http.Server] until its context ends.
type Server struct {
	http     *http.Server
	listener net.Listener
	logger   *log.Logger
}

// Listen binds addr. Port 0 picks a free port; see [Server.Addr].
func Listen(addr string, handler http.Handler, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return &Server{
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		logger:   logger,
	}, nil
}

// Addr is the address the server is bound to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// URL is the base URL clients should use.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// Serve blocks until ctx is cancelled or the server fails, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.Addr())
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
