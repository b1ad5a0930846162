// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package httpapi exposes the auth engine over REST.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/observability"
)

// BasePath prefixes every route.
const BasePath = "/api/v1"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// APIKey, when set, is required on every request.
	APIKey  string
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewRouter builds the gin engine serving h under BasePath.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(recovery(logger), requestLog(logger, cfg.Metrics))
	if cfg.APIKey != "" {
		r.Use(requireAPIKey(cfg.APIKey))
	}
	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, CodeRouteNotFound, "route not found", nil)
	})

	h.RegisterRoutes(r.Group(BasePath))
	return r
}

// Server runs the REST API.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server for handler on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start begins serving. The returned channel receives any error from the
// HTTP server after it starts and is closed when it stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("HTTP_ALREADY_RUNNING").Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("HTTP_SHUTDOWN_FAILED").With("operation", "shutdown http server").Wrap(err)
	}
	slog.Info("http server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
