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
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/quarry/pkg/backends/sqlite"
	"github.com/teradata-labs/quarry/pkg/export"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/pipeline"
	"github.com/teradata-labs/quarry/pkg/schema"
)

type stubService struct {
	cache *schema.Cache

	mu       sync.Mutex
	requests []pipeline.Request
	answer   *pipeline.Answer
}

func (s *stubService) Ask(_ context.Context, req pipeline.Request) *pipeline.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	a := *s.answer
	a.Question = req.Question
	return &a
}

func (s *stubService) Cache() *schema.Cache { return s.cache }

func newStub(t *testing.T, backend fabric.ExecutionBackend) *stubService {
	t.Helper()
	cache := schema.New(backend, schema.WithLogger(zaptest.NewLogger(t)))
	return &stubService{
		cache: cache,
		answer: &pipeline.Answer{
			Agent: "fast",
			SQL:   "SELECT name FROM beer_styles LIMIT 100",
			Results: &fabric.QueryResult{
				Columns: []string{"name"},
				Rows:    [][]any{{"Czech Pilsner"}, {"West Coast IPA"}},
			},
			Insights:  "Two styles are brewed.",
			FollowUps: []string{"a?", "b?", "c?"},
		},
	}
}

func demoStub(t *testing.T) *stubService {
	t.Helper()
	backend, err := sqlite.OpenDemo(context.Background(), zaptest.NewLogger(t))
	require.NoError(t, err)
	s := newStub(t, backend)
	t.Cleanup(func() { _ = s.cache.Close() })
	return s
}

func serve(t *testing.T, svc Service, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHTTPServer(svc, ":0", WithLogger(zaptest.NewLogger(t)),
		WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("quarry_agent_runs_total 1\n"))
		})))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAsk(t *testing.T) {
	svc := demoStub(t)
	rec := serve(t, svc, http.MethodPost, "/v1/ask",
		`{"question":"Which styles do we brew?","agent":"fast","mode":"pro"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var answer pipeline.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "Which styles do we brew?", answer.Question)
	assert.Equal(t, 2, answer.Results.RowCount())
	assert.Len(t, answer.FollowUps, 3)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, pipeline.Request{Question: "Which styles do we brew?", Agent: "fast", Mode: "pro"}, svc.requests[0])
}

func TestAsk_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "malformed json", body: `{"question":`, wantErr: "invalid request body"},
		{name: "empty question", body: `{"question":"   "}`, wantErr: pipeline.ErrEmptyQuestion.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := demoStub(t)
			rec := serve(t, svc, http.MethodPost, "/v1/ask", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
			assert.Empty(t, svc.requests)
		})
	}
}

func TestAsk_Workbook(t *testing.T) {
	svc := demoStub(t)
	rec := serve(t, svc, http.MethodPost, "/v1/ask?format=xlsx", `{"question":"Which styles do we brew?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	result, err := export.ReadResults(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, result.Columns)
	assert.Equal(t, 2, result.RowCount())
}

func TestAsk_MethodNotAllowed(t *testing.T) {
	rec := serve(t, demoStub(t), http.MethodGet, "/v1/ask", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSchema(t *testing.T) {
	svc := demoStub(t)

	rec := serve(t, svc, http.MethodGet, "/v1/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body schemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Status)
	assert.Equal(t, 4, body.Status.TableCount)
	assert.Contains(t, body.Schema, "beer_styles")

	rec = serve(t, svc, http.MethodGet, "/v1/schema?tables=shipments,%20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Schema, "shipments")
	assert.NotContains(t, body.Schema, "Table: beer_styles")
}

func TestSchema_BackendDown(t *testing.T) {
	backend := fabric.NewMockBackend()
	backend.SetListErr(assert.AnError)
	svc := newStub(t, backend)

	rec := serve(t, svc, http.MethodGet, "/v1/schema", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = serve(t, svc, http.MethodPost, "/v1/schema/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefresh(t *testing.T) {
	svc := demoStub(t)
	rec := serve(t, svc, http.MethodPost, "/v1/schema/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status schema.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 4, status.TableCount)
	assert.Contains(t, status.TableNames, "production_batches")
}

func TestHealth(t *testing.T) {
	rec := serve(t, demoStub(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := serve(t, demoStub(t), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quarry_agent_runs_total")
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name               string
		corsConfig         CORSConfig
		requestOrigin      string
		requestMethod      string
		expectedOrigin     string
		expectedMethods    string
		expectedStatusCode int
	}{
		{
			name: "wildcard origin",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
			},
			requestOrigin:      "https://example.com",
			requestMethod:      http.MethodGet,
			expectedOrigin:     "*",
			expectedMethods:    "GET, POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name: "origin not allowed",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"https://allowed.com"},
				AllowedMethods: []string{"GET"},
			},
			requestOrigin:      "https://not-allowed.com",
			requestMethod:      http.MethodGet,
			expectedOrigin:     "",
			expectedMethods:    "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name: "preflight",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"https://example.com"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				MaxAge:         3600,
			},
			requestOrigin:      "https://example.com",
			requestMethod:      http.MethodOptions,
			expectedOrigin:     "https://example.com",
			expectedMethods:    "GET, POST, OPTIONS",
			expectedStatusCode: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			h := &HTTPServer{corsConfig: tt.corsConfig}

			req := httptest.NewRequest(tt.requestMethod, "/healthz", nil)
			req.Header.Set("Origin", tt.requestOrigin)
			rec := httptest.NewRecorder()
			h.corsMiddleware(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatusCode, rec.Code)
			assert.Equal(t, tt.expectedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.expectedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}
