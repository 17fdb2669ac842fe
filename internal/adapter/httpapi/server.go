// Package httpapi exposes the embed and compare use cases over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"facequant/config"
	"facequant/internal/logging"
	"facequant/internal/metrics"
	"facequant/internal/usecase"
)

// Server serves /get-embedding and /compare-embeddings.
type Server struct {
	cfg      config.ServerConfig
	embed    *usecase.EmbedUseCase
	compare  *usecase.CompareUseCase
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// New creates a server. gatherer may be nil, in which case /metrics is not
// mounted.
func New(
	cfg config.ServerConfig,
	embed *usecase.EmbedUseCase,
	compare *usecase.CompareUseCase,
	logger logrus.FieldLogger,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if m == nil {
		m = metrics.Noop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = config.DefaultConfig().Server.MaxUploadBytes
	}
	return &Server{
		cfg:      cfg,
		embed:    embed,
		compare:  compare,
		logger:   logger,
		metrics:  m,
		gatherer: gatherer,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /get-embedding", s.handleGetEmbedding)
	mux.HandleFunc("POST /compare-embeddings", s.handleCompareEmbeddings)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		mux.Handle("/metrics", methodNotAllowed(http.MethodGet))
	}

	// Method-less patterns are less specific, so they only catch the
	// methods the routes above do not serve.
	mux.Handle("/get-embedding", methodNotAllowed(http.MethodPost))
	mux.Handle("/compare-embeddings", methodNotAllowed(http.MethodPost))
	mux.Handle("/healthz", methodNotAllowed(http.MethodGet))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "not found: " + r.URL.Path, Kind: "not_found"})
	})

	var h http.Handler = mux
	h = withRateLimit(h, s.cfg.RateLimit, s.cfg.RateBurst)
	h = withAccessLog(h, s.logger, s.metrics)
	if len(s.cfg.AllowedOrigins) > 0 {
		h = withCORS(h, s.cfg.AllowedOrigins)
	}
	return h
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", ln.Addr().String()).Info("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultConfig().Server.ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
