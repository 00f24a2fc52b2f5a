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
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures the middleware returned by [Middleware].
type Option func(*config)

type config struct {
	logger            *slog.Logger
	requestIDHeader   string
	setResponseHeader bool
	includeClientIP   bool
	includeUserAgent  bool
	scopeFunc         func(*http.Request) string

	enableOTel     bool
	tracerProvider trace.TracerProvider
	propagators    propagation.TextMapPropagator
}

func defaultConfig() *config {
	return &config{
		logger:            slog.Default(),
		requestIDHeader:   RequestIDHeader,
		setResponseHeader: true,
		includeClientIP:   true,
		includeUserAgent:  true,
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.requestIDHeader == "" {
		cfg.requestIDHeader = RequestIDHeader
	}
	return cfg
}

// WithLogger sets the logger stored in each request context and used for
// the completion log line. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRequestIDHeader changes the header consulted for an inbound request
// ID and used to echo the ID back on the response. Defaults to
// [RequestIDHeader].
func WithRequestIDHeader(name string) Option {
	return func(c *config) { c.requestIDHeader = name }
}

// WithResponseRequestID controls whether the request ID is echoed back on
// the response. Enabled by default.
func WithResponseRequestID(enabled bool) Option {
	return func(c *config) { c.setResponseHeader = enabled }
}

// WithClientIP controls whether the client address is added to the MDC
// under [MDCIPAddress]. Enabled by default.
func WithClientIP(enabled bool) Option {
	return func(c *config) { c.includeClientIP = enabled }
}

// WithUserAgent controls whether the User-Agent header is added to the MDC
// under [MDCUserAgent]. Enabled by default.
func WithUserAgent(enabled bool) Option {
	return func(c *config) { c.includeUserAgent = enabled }
}

// WithScope overrides the nested diagnostic scope pushed for each request.
// The default scope is "METHOD /path".
func WithScope(fn func(*http.Request) string) Option {
	return func(c *config) { c.scopeFunc = fn }
}

// WithOTel enables OpenTelemetry instrumentation of wrapped handlers via
// otelhttp. Disabled by default.
func WithOTel(enabled bool) Option {
	return func(c *config) { c.enableOTel = enabled }
}

// WithTracerProvider sets the tracer provider used when OTel
// instrumentation is enabled. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

// WithPropagators sets the propagators used to extract remote trace
// context when OTel instrumentation is enabled. Defaults to the global
// propagators.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(c *config) { c.propagators = p }
}
