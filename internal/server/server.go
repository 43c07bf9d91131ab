// Package server exposes a loaded emission model over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/YuminosukeSato/emissions/inference"
	"github.com/YuminosukeSato/emissions/pkg/errors"
	"github.com/YuminosukeSato/emissions/pkg/log"
)

type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type Server struct {
	opts    Options
	logger  log.Logger
	metrics *Metrics
	router  *Router
}

func New(predictor *inference.Predictor, opts Options, logger log.Logger) *Server {
	if logger == nil {
		logger = log.GetLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}

	logger = logger.With(log.ComponentKey, "server")
	metrics := NewMetrics()
	handler := NewHandler(predictor, metrics, logger, opts.MaxBodyBytes)

	return &Server{
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		router:  NewRouter(handler, metrics, logger),
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on opts.Addr until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.opts.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "http.addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}
