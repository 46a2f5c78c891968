package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	transcript "github.com/alparslanahmed/transcript-parser-go"
	"github.com/alparslanahmed/transcript-parser-go/internal/config"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Parser turns PDF bytes into a transcript. *transcript.Parser satisfies it.
type Parser interface {
	ParseBytes(data []byte) (*transcript.Transcript, error)
}

// Server exposes the transcript parser as an upload endpoint.
// The same request handling backs net/http and API Gateway proxy events.
type Server struct {
	cfg     config.ServerConfig
	parser  Parser
	logger  *log.Logger
	cache   *resultCache
	handler http.Handler
}

// New creates a server for the given configuration. Close releases the
// result cache.
func New(cfg *config.Config, parser Parser, logger *log.Logger) (*Server, error) {
	if parser == nil {
		return nil, errors.New("parser is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	cache, err := newResultCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg.Server,
		parser: parser,
		logger: logger,
		cache:  cache,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Route, s.handleHTTP)
	if s.cfg.Route != "/" {
		// Rewritten deployments forward the upload to the root path
		mux.HandleFunc("/{$}", s.handleHTTP)
	}
	s.handler = s.withRequestLogging(mux)

	return s, nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	s.logger.Info("listening", "addr", listener.Addr().String(), "route", s.cfg.Route)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// Close releases the result cache
func (s *Server) Close() {
	s.cache.close()
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes()+multipartOverhead)
	resp := s.dispatch(r.Method, r.Header.Get("Content-Type"), body)

	for key, values := range resp.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.status)
	if _, err := w.Write(resp.body); err != nil {
		s.logger.Warn("could not write response", "err", err)
	}
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLogging assigns a request id and logs one line per request
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
