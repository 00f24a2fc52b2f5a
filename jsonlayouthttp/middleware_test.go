// Copyright 2026 The elasticflume Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jsonlayouthttp_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elasticflume/jsonlayout"
	"github.com/elasticflume/jsonlayout/jsonlayouthttp"
)

func newRequestLogger(t *testing.T, mdcKeys ...string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts := []jsonlayout.Option{
		jsonlayout.WithRedirectWriter(buf),
		jsonlayout.WithLoggerName("http.access"),
	}
	if len(mdcKeys) > 0 {
		opts = append(opts, jsonlayout.WithMDCKeys(mdcKeys...))
	}
	h, err := jsonlayout.NewHandler(nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return slog.New(h), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line %q", line)
		out = append(out, m)
	}
	return out
}

func TestMiddlewarePopulatesMDC(t *testing.T) {
	logger, _ := newRequestLogger(t)

	var seen map[string]string
	var scope []string
	handler := jsonlayouthttp.Middleware(jsonlayouthttp.WithLogger(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = jsonlayout.MDC(r.Context())
			scope = jsonlayout.NDC(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.RemoteAddr = "203.0.113.9:4711"
	req.Header.Set("User-Agent", "jsonlayout-test/1.0")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.NotNil(t, seen)
	assert.Equal(t, http.MethodGet, seen[jsonlayouthttp.MDCMethod])
	assert.Equal(t, "/api/items", seen[jsonlayouthttp.MDCPath])
	assert.Equal(t, "203.0.113.9", seen[jsonlayouthttp.MDCIPAddress])
	assert.Equal(t, "jsonlayout-test/1.0", seen[jsonlayouthttp.MDCUserAgent])

	_, err := uuid.Parse(seen[jsonlayouthttp.MDCRequestID])
	assert.NoError(t, err, "generated request ID should be a UUID")

	require.Equal(t, []string{"GET /api/items"}, scope)
}

func TestMiddlewareHonorsInboundRequestID(t *testing.T) {
	logger, _ := newRequestLogger(t)

	var seen map[string]string
	handler := jsonlayouthttp.Middleware(jsonlayouthttp.WithLogger(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = jsonlayout.MDC(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(jsonlayouthttp.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", seen[jsonlayouthttp.MDCRequestID])
	assert.Equal(t, "req-42", rr.Header().Get(jsonlayouthttp.RequestIDHeader))
}

func TestMiddlewareCompletionLine(t *testing.T) {
	logger, buf := newRequestLogger(t,
		jsonlayouthttp.MDCRequestID, jsonlayouthttp.MDCMethod, jsonlayouthttp.MDCPath)

	handler := jsonlayouthttp.Middleware(jsonlayouthttp.WithLogger(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("hello"))
		}))

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	line := lines[0]

	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "http.access", line["logger"])
	assert.Equal(t, "request handled", line["message"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
	assert.Equal(t, float64(5), line["bytes"])

	mdc, ok := line["MDC"].(map[string]any)
	require.True(t, ok, "completion line should carry the request MDC")
	assert.Equal(t, "POST", mdc[jsonlayouthttp.MDCMethod])
	assert.Equal(t, "/submit", mdc[jsonlayouthttp.MDCPath])

	assert.Equal(t, "POST /submit", line["NDC"])
}

func TestMiddlewareStatusDrivesLevel(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success", http.StatusOK, "INFO"},
		{"client error", http.StatusNotFound, "WARN"},
		{"server error", http.StatusBadGateway, "ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, buf := newRequestLogger(t)
			handler := jsonlayouthttp.Middleware(jsonlayouthttp.WithLogger(logger))(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
				}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			lines := decodeLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tc.level, lines[0]["level"])
			assert.Equal(t, float64(tc.status), lines[0]["status"])
		})
	}
}

func TestMiddlewareOptOuts(t *testing.T) {
	logger, _ := newRequestLogger(t)

	var seen map[string]string
	handler := jsonlayouthttp.Middleware(
		jsonlayouthttp.WithLogger(logger),
		jsonlayouthttp.WithClientIP(false),
		jsonlayouthttp.WithUserAgent(false),
		jsonlayouthttp.WithResponseRequestID(false),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = jsonlayout.MDC(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "agent")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.NotContains(t, seen, jsonlayouthttp.MDCIPAddress)
	assert.NotContains(t, seen, jsonlayouthttp.MDCUserAgent)
	assert.Empty(t, rr.Header().Get(jsonlayouthttp.RequestIDHeader))
}

func TestMiddlewareCustomScope(t *testing.T) {
	logger, _ := newRequestLogger(t)

	var scope []string
	handler := jsonlayouthttp.Middleware(
		jsonlayouthttp.WithLogger(logger),
		jsonlayouthttp.WithScope(func(r *http.Request) string { return "ingest" }),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = jsonlayout.NDC(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"ingest"}, scope)
}

func TestMiddlewareContextLogger(t *testing.T) {
	logger, _ := newRequestLogger(t)

	var got *slog.Logger
	handler := jsonlayouthttp.Middleware(jsonlayouthttp.WithLogger(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = jsonlayout.Logger(r.Context())
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Same(t, logger, got)
}

func TestMiddlewareNilHandler(t *testing.T) {
	logger, _ := newRequestLogger(t)

	handler := jsonlayouthttp.Middleware(jsonlayouthttp.WithLogger(logger))(nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMiddlewareOTelWrapping(t *testing.T) {
	logger, buf := newRequestLogger(t)

	handler := jsonlayouthttp.Middleware(
		jsonlayouthttp.WithLogger(logger),
		jsonlayouthttp.WithOTel(true),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/traced", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
}
