// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/HyugaDev/batch-query-chatbot/internal/analysis"
	"github.com/HyugaDev/batch-query-chatbot/internal/api"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the HTTP server.
	DefaultPort = 8787

	// DefaultHost binds to loopback only.
	DefaultHost = "127.0.0.1"

	// MaxRequestBodySize caps the POST /analyze body (64 MiB). Four 10 MiB
	// images grow by a third once base64 encoded.
	MaxRequestBodySize = 64 << 20

	// Version is the server version.
	Version = "1.0.0"
)

// Client-facing error messages. Details stay in the log.
const (
	msgBadRequest    = "Query and images are required"
	msgTooLarge      = "Request body too large"
	msgProcessFailed = "Failed to process request"
)

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats tracks request counters. All fields are updated atomically.
type Stats struct {
	totalRequests   atomic.Int64
	providerAnswers atomic.Int64
	fallbackAnswers atomic.Int64
	badRequests     atomic.Int64
	startTime       time.Time
}

// NewStats creates a Stats starting now.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// Record counts one finished analysis by where its answer came from.
func (s *Stats) Record(source string) {
	s.totalRequests.Add(1)
	if source == analysis.SourceProvider {
		s.providerAnswers.Add(1)
	} else {
		s.fallbackAnswers.Add(1)
	}
}

// RecordBadRequest counts a request rejected before analysis.
func (s *Stats) RecordBadRequest() {
	s.totalRequests.Add(1)
	s.badRequests.Add(1)
}

// Uptime returns the time since the stats were created.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Snapshot returns the counters in wire form.
func (s *Stats) Snapshot() api.StatsResponse {
	return api.StatsResponse{
		TotalRequests:   s.totalRequests.Load(),
		ProviderAnswers: s.providerAnswers.Load(),
		FallbackAnswers: s.fallbackAnswers.Load(),
		BadRequests:     s.badRequests.Load(),
		UptimeSeconds:   int64(s.Uptime().Seconds()),
		Uptime:          humanize.RelTime(s.startTime, time.Now(), "", ""),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the analysis HTTP server.
type Server struct {
	host    string
	port    int
	router  *http.ServeMux
	server  *http.Server
	service *analysis.Service
	stats   *Stats
	limiter *RateLimiter
	cors    *CORSConfig

	mu sync.RWMutex
}

// NewServer creates a Server that answers with svc. It listens on
// DefaultHost:DefaultPort unless told otherwise.
func NewServer(svc *analysis.Service) *Server {
	s := &Server{
		host:    DefaultHost,
		port:    DefaultPort,
		router:  http.NewServeMux(),
		service: svc,
		stats:   NewStats(),
		limiter: DefaultRateLimiter(),
		cors:    DefaultCORSConfig(),
	}

	s.setupRoutes()
	return s
}

// WithAddr sets the listen host and port. Zero values keep the defaults.
func (s *Server) WithAddr(host string, port int) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if host != "" {
		s.host = host
	}
	if port != 0 {
		s.port = port
	}
	return s
}

// WithRateLimiter replaces the per-IP limiter and stops the old one. A nil
// limiter disables rate limiting.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limiter != nil && s.limiter != rl {
		s.limiter.Stop()
	}
	s.limiter = rl
	return s
}

// WithCORS sets the CORS configuration.
func (s *Server) WithCORS(config *CORSConfig) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cors = config
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Stats returns the live counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /analyze", s.handleAnalyze)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /limits", s.handleLimits)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	limiter, cors := s.limiter, s.cors
	s.mu.RUnlock()

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
	}
	if cors != nil {
		middlewares = append(middlewares, CORSMiddleware(cors))
	}
	if limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(limiter))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// ANALYZE HANDLER
// ============================================================================

// handleAnalyze handles POST /analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req api.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			log.Printf("ANALYZE_REJECTED | reason=body_too_large limit=%d client_ip=%s", tooBig.Limit, GetClientIP(r))
			s.stats.RecordBadRequest()
			s.writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		log.Printf("ANALYZE_ERROR | reason=decode error=%v client_ip=%s", err, GetClientIP(r))
		s.writeError(w, http.StatusInternalServerError, msgProcessFailed)
		return
	}

	images := make([]analysis.Image, len(req.Images))
	for i, img := range req.Images {
		images[i] = analysis.Image{URL: img.URL, Name: img.Name}
	}

	result, err := s.service.Analyze(r.Context(), req.Query, images)
	switch {
	case errors.Is(err, analysis.ErrBadRequest):
		s.stats.RecordBadRequest()
		s.writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	case err != nil:
		log.Printf("ANALYZE_ERROR | reason=analysis error=%v", err)
		s.writeError(w, http.StatusInternalServerError, msgProcessFailed)
		return
	}

	s.stats.Record(result.Source)
	log.Printf("ANALYZE | images=%d query=%q source=%s provider=%s duration=%s",
		len(images), truncateString(req.Query, 60), result.Source, result.Provider, result.Duration.Round(time.Millisecond))

	s.writeJSON(w, http.StatusOK, api.AnalyzeResponse{Response: result.Text})
}

// ============================================================================
// INFO HANDLERS
// ============================================================================

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := api.HealthResponse{
		Status:             "ok",
		Version:            Version,
		Provider:           s.service.ProviderName(),
		ProviderConfigured: s.service.ProviderConfigured(),
	}
	if !health.ProviderConfigured {
		health.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, health)
}

// handleLimits handles GET /limits.
func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Limits())
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// Limits returns the upload constraints clients must respect.
func Limits() api.LimitsResponse {
	return api.LimitsResponse{
		MaxImages:      intake.MaxImages,
		MaxImageBytes:  intake.MaxImageSize,
		AllowedTypes:   append([]string(nil), intake.AllowedTypes...),
		MinQueryLength: session.MinQueryLength,
		MaxQueryLength: session.MaxQueryLength,
	}
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := s.Addr()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s version=%s provider=%s configured=%t",
		addr, Version, s.service.ProviderName(), s.service.ProviderConfigured())
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	limiter := s.limiter
	s.mu.RUnlock()

	if srv == nil {
		return nil
	}

	snap := s.stats.Snapshot()
	log.Printf("SERVER_SHUTDOWN | requests=%d provider=%d fallback=%d bad=%d uptime=%ds",
		snap.TotalRequests, snap.ProviderAnswers, snap.FallbackAnswers, snap.BadRequests, snap.UptimeSeconds)

	if limiter != nil {
		limiter.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_ERROR | error=%v", err)
	}
}

// truncateString truncates a string to the specified length.
// Uses rune-based truncation to handle Unicode correctly.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
