// Package server implements the HTTP surface of the knowledge base
// bridge: the search endpoint, the health probe and the 404 fallback.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/localkb/lkb/internal/config"
	"github.com/localkb/lkb/internal/engine"
	"github.com/localkb/lkb/internal/query"
	"github.com/localkb/lkb/internal/textutil"
)

// maxBodyBytes caps how much of a request body is read. Anything past
// the cap is dropped; the lenient request parser copes with the
// cut-off JSON.
const maxBodyBytes = 2 << 20

// bodyPreviewLen bounds how much of the request body lands in debug
// logs.
const bodyPreviewLen = 500

// Server dispatches HTTP requests to the configured search engine.
type Server struct {
	cfg     config.Config
	engine  engine.Engine
	version string
	logger  *logrus.Logger
}

// New builds a server around the given engine. version is reported by
// the health endpoint.
func New(cfg config.Config, eng engine.Engine, version string, logger *logrus.Logger) *Server {
	return &Server{
		cfg:     cfg,
		engine:  eng,
		version: version,
		logger:  logger,
	}
}

// Handler returns the root dispatcher. Routing is exact: anything that
// is not POST /search or GET / gets the 404 payload, wrong methods on
// known paths included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.dispatch)
	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.cfg.Server.Addr(),
		Handler:        s.Handler(),
		ReadTimeout:    30 * time.Second,  // Prevent slow loris attacks
		WriteTimeout:   30 * time.Second,  // Prevent slow writes
		IdleTimeout:    120 * time.Second, // Close idle connections
		MaxHeaderBytes: 1 << 20,           // 1MB max header size
	}

	// Start the server in a goroutine to allow graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case serverErr <- err:
			case <-ctx.Done():
				// Context cancelled, error no longer relevant
			}
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/search":
		s.handleSearch(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/":
		s.handleHealth(w)
	default:
		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("No route")
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not Found"})
	}
}

// handleSearch runs the full pipeline: parse, normalise, query the
// engine, reshape. Engine trouble degrades to an empty result set; the
// endpoint never answers 5xx.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqLog := s.logger.WithFields(logrus.Fields{
		"req_id": uuid.NewString(),
		"remote": r.RemoteAddr,
	})

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		reqLog.WithError(err).Warn("Request body truncated")
	}
	reqLog.WithFields(logrus.Fields{
		"length":  len(body),
		"preview": textutil.TruncateWithEllipsis(string(body), bodyPreviewLen),
	}).Debug("Search request body")

	req := query.ParseSearchRequest(body)
	q := query.Normalise(req, s.cfg.Server.MaxQueryLen)

	count := req.Count
	if count <= 0 {
		count = s.cfg.Engine.SearchCount
	}

	reqLog.WithFields(logrus.Fields{
		"query":  q,
		"count":  count,
		"engine": s.engine.Name(),
	}).Info("Search")

	var results []engine.Result
	if q == "" {
		reqLog.Warn("Empty query after normalisation")
	} else if found, err := s.engine.Search(r.Context(), q, count); err != nil {
		reqLog.WithError(err).Warn("Engine search failed")
	} else {
		results = found
	}

	s.writeJSON(w, http.StatusOK, newSearchResponse(results, s.engine.Name(), time.Since(start)))
}

func (s *Server) handleHealth(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "running",
		Service: serviceName,
		Version: s.version,
	})
}

// writeJSON sends payload with the bridge's fixed headers. Every
// response carries the permissive CORS header, errors included.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to write response")
	}
}
