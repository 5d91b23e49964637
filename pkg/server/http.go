// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the pipeline over HTTP/JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/export"
	"github.com/teradata-labs/quarry/pkg/pipeline"
	"github.com/teradata-labs/quarry/pkg/schema"
)

// maxRequestBytes caps the /v1/ask request body.
const maxRequestBytes = 1 << 20

// Service is the pipeline surface the server needs.
type Service interface {
	Ask(ctx context.Context, req pipeline.Request) *pipeline.Answer
	Cache() *schema.Cache
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns a permissive CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", "Content-Disposition"},
		MaxAge:         86400,
	}
}

// Option configures an HTTPServer.
type Option func(*HTTPServer)

// WithCORS replaces the CORS configuration.
func WithCORS(cfg CORSConfig) Option {
	return func(h *HTTPServer) { h.corsConfig = cfg }
}

// WithMetrics serves handler on GET /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(h *HTTPServer) { h.metrics = handler }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *HTTPServer) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// HTTPServer serves the ask, schema and health endpoints.
type HTTPServer struct {
	service    Service
	httpServer *http.Server
	logger     *zap.Logger
	corsConfig CORSConfig
	metrics    http.Handler
	now        func() time.Time
}

// NewHTTPServer creates a server listening on addr.
func NewHTTPServer(service Service, addr string, opts ...Option) *HTTPServer {
	h := &HTTPServer{
		service:    service,
		logger:     zap.NewNop(),
		corsConfig: DefaultCORSConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.httpServer = &http.Server{
		Addr:        addr,
		Handler:     h.Handler(),
		ReadTimeout: 30 * time.Second,
		// Agent runs can take several model round trips.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return h
}

// Handler returns the routed handler, wrapped in CORS when enabled.
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /v1/ask", h.handleAsk)
	mux.HandleFunc("GET /v1/schema", h.handleSchema)
	mux.HandleFunc("POST /v1/schema/refresh", h.handleRefresh)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	var handler http.Handler = mux
	if h.corsConfig.Enabled {
		handler = h.corsMiddleware(mux)
	}
	return handler
}

// Start serves until Stop is called.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server", zap.String("addr", h.httpServer.Addr))
	if err := h.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server")
	return h.httpServer.Shutdown(ctx)
}

type askRequest struct {
	Question string `json:"question"`
	Agent    string `json:"agent,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleAsk runs the pipeline. ?format=xlsx returns the answer as a
// spreadsheet instead of JSON.
func (h *HTTPServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: pipeline.ErrEmptyQuestion.Error()})
		return
	}

	answer := h.service.Ask(r.Context(), pipeline.Request{
		Question: req.Question,
		Agent:    req.Agent,
		Mode:     req.Mode,
	})
	h.logger.Info("question answered",
		zap.String("agent", answer.Agent),
		zap.Bool("fell_back", answer.FellBack),
		zap.Int("rows", answer.Results.RowCount()),
		zap.String("error", answer.Error),
		zap.Int64("duration_ms", answer.DurationMs))

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		h.writeWorkbook(w, answer)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *HTTPServer) writeWorkbook(w http.ResponseWriter, answer *pipeline.Answer) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="quarry-results.xlsx"`)
	err := export.WriteXLSX(w, export.Report{
		Question: answer.Question,
		SQL:      answer.SQL,
		Insights: answer.Insights,
		Results:  answer.Results,
		Created:  h.now(),
	})
	if err != nil {
		h.logger.Error("failed to write workbook", zap.Error(err))
	}
}

type schemaResponse struct {
	Status *schema.Status `json:"status"`
	Schema string         `json:"schema"`
}

// handleSchema returns the cache status and schema text. ?tables=a,b
// narrows the text to the named tables.
func (h *HTTPServer) handleSchema(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	var tables []string
	if raw := r.URL.Query().Get("tables"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tables = append(tables, t)
			}
		}
	}
	text, err := cache.Schema(r.Context(), tables...)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{Status: cache.Status(), Schema: text})
}

func (h *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if err := cache.Refresh(r.Context()); err != nil {
		h.logger.Warn("schema refresh failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cache.Status())
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.service.Cache().Backend().Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// corsMiddleware adds CORS headers to HTTP responses
func (h *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := h.getAllowedOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
		}
		if h.corsConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if len(h.corsConfig.AllowedMethods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(h.corsConfig.AllowedMethods, ", "))
		}
		if len(h.corsConfig.AllowedHeaders) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(h.corsConfig.AllowedHeaders, ", "))
		}
		if len(h.corsConfig.ExposedHeaders) > 0 {
			w.Header().Set("Access-Control-Expose-Headers", strings.Join(h.corsConfig.ExposedHeaders, ", "))
		}
		if h.corsConfig.MaxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", h.corsConfig.MaxAge))
		}

		// Preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getAllowedOrigin returns the origin to echo, or "" when it is not allowed.
func (h *HTTPServer) getAllowedOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range h.corsConfig.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == origin {
			return origin
		}
	}
	return ""
}
