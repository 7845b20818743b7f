// Package server exposes the analyzer over HTTP: the form page, the JSON
// API, the Gradio-compatible predict endpoint and record management.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/straja-ai/emotion/internal/analysis"
	"github.com/straja-ai/emotion/internal/config"
)

// Server owns the routes and the http.Server that serves them.
type Server struct {
	cfg       config.ServerConfig
	storeType string
	svc       *analysis.Service
	mux       *http.ServeMux
	handler   http.Handler
	inFlight  chan struct{}
}

func New(cfg *config.Config, svc *analysis.Service) *Server {
	s := &Server{
		cfg:       cfg.Server,
		storeType: cfg.Store.Type,
		svc:       svc,
		mux:       http.NewServeMux(),
	}
	if cfg.Server.MaxInFlightRequests > 0 {
		s.inFlight = make(chan struct{}, cfg.Server.MaxInFlightRequests)
	}
	if svc.Store() == nil {
		s.storeType = "none"
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /{$}", s.handleFormSubmit)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/predict", s.handlePredict)
	s.mux.HandleFunc("POST /api/sync-analyze", s.handleSyncAnalyze)
	s.mux.HandleFunc("GET /api/records", s.handleListRecords)
	s.mux.HandleFunc("GET /api/records/{id}", s.handleGetRecord)
	s.mux.HandleFunc("DELETE /api/records/{id}", s.handleDeleteRecord)

	var h http.Handler = s.mux
	h = s.limitBody(h)
	h = s.limitInFlight(h)
	h = cors(h)
	h = accessLog(h)
	h = requestID(h)
	h = recoverer(h)
	s.handler = h
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("emotion analyzer listening")
		errCh <- httpSrv.Serve(ln)
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
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	log.Info().Dur("timeout", timeout).Msg("shutting down http server")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
