// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mockdetect is a stand-in for the remote detection service, used by
// tests and local development. It runs no detection: an uploaded video is
// stored and republished unchanged as the "annotated" result.
package mockdetect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/visiontrack/internal/metrics"
)

// Config holds mock endpoint settings.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// OutputsDir receives stored uploads; it is served under /outputs/.
	OutputsDir string

	// PublicURL prefixes returned video_url values. Empty derives it from the request Host.
	PublicURL string

	// FailWith, when set, makes every upload fail with status 500 and this message.
	FailWith string

	// ProcessingDelay simulates server-side detection time.
	ProcessingDelay time.Duration

	// UploadsPerMinute enables per-IP rate limiting of /upload when > 0.
	UploadsPerMinute int

	// Logger is the logger instance to use
	Logger zerolog.Logger
}

// Server is the mock detection service.
type Server struct {
	cfg        Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	mu       sync.Mutex
	failWith string
	uploads  int
}

// New creates a mock server. The outputs directory is created if missing.
func New(cfg Config) (*Server, error) {
	if cfg.OutputsDir == "" {
		return nil, fmt.Errorf("outputs directory is required")
	}
	if err := os.MkdirAll(cfg.OutputsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create outputs dir: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		failWith: cfg.FailWith,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "mockdetect")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		if s.cfg.UploadsPerMinute > 0 {
			r.Use(rateLimit(s.cfg.UploadsPerMinute, time.Minute))
		}
		r.Post("/upload", s.handleUpload)
	})

	fs := http.StripPrefix("/outputs/", http.FileServer(http.Dir(s.cfg.OutputsDir)))
	r.Get("/outputs/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
	return r
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetFailure switches failure injection at runtime; empty disables it.
func (s *Server) SetFailure(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = msg
}

// Uploads returns how many uploads reached the handler.
func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.cfg.ListenAddr).
		Str("outputs", s.cfg.OutputsDir).
		Msg("starting mock detection server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mock detection server failed: %w", err)
	}
	return nil
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mock detection server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down mock detection server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.uploads++
	failWith := s.failWith
	s.mu.Unlock()

	logger := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

	id := uuid.New().String()
	name := id + ".mp4"
	size, err := s.storeUpload(r, name)
	if err != nil {
		metrics.IncMockUpload("error")
		logger.Warn().Err(err).Msg("mock upload rejected")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	logger.Info().Str("id", id).Int64("size_bytes", size).Msg("mock upload stored")

	if s.cfg.ProcessingDelay > 0 {
		select {
		case <-time.After(s.cfg.ProcessingDelay):
		case <-r.Context().Done():
			return
		}
	}

	if failWith != "" {
		metrics.IncMockUpload("error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": failWith})
		return
	}

	metrics.IncMockUpload("ok")
	writeJSON(w, http.StatusOK, map[string]string{"video_url": s.publicURL(r) + "/outputs/" + name})
}

func (s *Server) storeUpload(r *http.Request, name string) (int64, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return 0, fmt.Errorf("expected multipart form: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return 0, errors.New("missing file field")
		}
		if err != nil {
			return 0, fmt.Errorf("read multipart: %w", err)
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		pending, err := renameio.NewPendingFile(s.outputPath(name))
		if err != nil {
			return 0, fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = pending.Cleanup() }()

		n, err := io.Copy(pending, part)
		if err != nil {
			return 0, fmt.Errorf("store upload: %w", err)
		}
		if err := pending.CloseAtomicallyReplace(); err != nil {
			return 0, fmt.Errorf("commit upload: %w", err)
		}
		return n, nil
	}
}

func (s *Server) outputPath(name string) string {
	return filepath.Join(s.cfg.OutputsDir, name)
}

func (s *Server) publicURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimSuffix(s.cfg.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// rateLimit mirrors the API rate limiter: sliding window per client IP with a
// JSON 429 body.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limit_exceeded"})
		}),
	)
}
