package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/rulekit/rulekit/internal/config"
	"github.com/rulekit/rulekit/internal/metrics"
)

// Server serves the rule API until its context is cancelled.
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	logger     *slog.Logger
}

// Options wires the pieces a Server needs. Metrics may be nil.
type Options struct {
	Store       RuleStore
	Metrics     *metrics.Collector
	MetricsPath string
	Logger      *slog.Logger
}

// NewHandler builds the full middleware chain and route table.
func NewHandler(cfg config.ServerConfig, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewCollector("")
	}

	api := NewAPIHandler(opts.Store, collector, logger, cfg.RequestTimeout)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	if opts.Metrics != nil && opts.MetricsPath != "" {
		mux.Handle("GET "+opts.MetricsPath, opts.Metrics.Handler())
	}

	var h http.Handler = mux
	if cfg.MaxBodyBytes > 0 {
		h = withBodyLimit(cfg.MaxBodyBytes, h)
	}
	h = withLogging(logger, collector, h)
	h = withRecovery(logger, h)
	h = withRequestID(h)
	return h
}

func New(cfg config.ServerConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      NewHandler(cfg, opts),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	<-errCh
	s.logger.Info("HTTP server stopped")
	return nil
}
