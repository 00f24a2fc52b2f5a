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

package jsonlayouthttp

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/elasticflume/jsonlayout"
)

const instrumentationName = "github.com/elasticflume/jsonlayout/jsonlayouthttp"

// RequestIDHeader is the default header consulted for an inbound request ID
// and used to echo the ID back on the response.
const RequestIDHeader = "X-Request-Id"

// MDC keys populated by [Middleware].
const (
	MDCRequestID = "RequestID"
	MDCIPAddress = "IPAddress"
	MDCUserAgent = "UserAgent"
	MDCMethod    = "Method"
	MDCPath      = "Path"
)

// Middleware returns net/http middleware that stamps each request with a
// diagnostic context before the wrapped handler runs. The request ID is
// taken from the inbound request ID header when present, otherwise a new
// UUID is generated. The ID, client address, method, and path land in the
// MDC; a nested diagnostic scope named after the request line is pushed;
// and the configured logger is stored in the request context so handlers
// can retrieve it with [jsonlayout.Logger].
//
// After the handler returns, one completion line is logged with the
// response status, bytes written, and latency. 4xx responses log at WARN
// and 5xx at ERROR.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := applyOptions(opts)

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}

		logging := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(cfg.requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			if cfg.setResponseHeader {
				w.Header().Set(cfg.requestIDHeader, id)
			}

			mdc := map[string]string{
				MDCRequestID: id,
				MDCMethod:    r.Method,
				MDCPath:      r.URL.Path,
			}
			if cfg.includeClientIP {
				if ip := clientIP(r); ip != "" {
					mdc[MDCIPAddress] = ip
				}
			}
			if cfg.includeUserAgent {
				if ua := r.UserAgent(); ua != "" {
					mdc[MDCUserAgent] = ua
				}
			}

			ctx := jsonlayout.WithMDCValues(r.Context(), mdc)
			ctx = jsonlayout.PushNDC(ctx, requestScope(cfg, r))
			ctx = jsonlayout.ContextWithLogger(ctx, cfg.logger)
			r = r.WithContext(ctx)

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				cfg.logger.LogAttrs(ctx, completionLevel(rec.status), "request handled",
					slog.Int("status", rec.status),
					slog.Int64("bytes", rec.bytes),
					slog.Duration("latency", time.Since(start)),
				)
			}()

			next.ServeHTTP(rec, r)
		})

		if !cfg.enableOTel {
			return logging
		}

		otelOpts := []otelhttp.Option{
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		}
		if cfg.tracerProvider != nil {
			otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
		}
		if cfg.propagators != nil {
			otelOpts = append(otelOpts, otelhttp.WithPropagators(cfg.propagators))
		}
		return otelhttp.NewHandler(logging, instrumentationName, otelOpts...)
	}
}

func requestScope(cfg *config, r *http.Request) string {
	if cfg.scopeFunc != nil {
		return cfg.scopeFunc(r)
	}
	return r.Method + " " + r.URL.Path
}

func completionLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// clientIP strips the port from RemoteAddr, tolerating bare hosts.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseRecorder observes the status code and byte count without
// changing what the wrapped handler writes.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (rec *responseRecorder) WriteHeader(status int) {
	if !rec.wroteHeader {
		rec.status = status
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *responseRecorder) Write(p []byte) (int, error) {
	if !rec.wroteHeader {
		rec.wroteHeader = true
	}
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += int64(n)
	return n, err
}

func (rec *responseRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
