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

package jsonlayoutgrpc

import (
	"log/slog"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures the interceptors returned by this package.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	requestIDKey  string
	includePeer   bool
	includeSizes  bool

	enableOTel     bool
	tracerProvider trace.TracerProvider
	propagators    propagation.TextMapPropagator
}

func defaultConfig() *config {
	return &config{
		logger:       slog.Default(),
		requestIDKey: RequestIDMetadataKey,
		includePeer:  true,
		includeSizes: true,
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
	if cfg.requestIDKey == "" {
		cfg.requestIDKey = RequestIDMetadataKey
	}
	return cfg
}

// WithLogger sets the logger stored in each RPC context and used for the
// completion log line. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRequestIDMetadataKey changes the incoming metadata key consulted for
// a caller-supplied request ID. Defaults to [RequestIDMetadataKey].
func WithRequestIDMetadataKey(key string) Option {
	return func(c *config) { c.requestIDKey = key }
}

// WithPeerInfo controls whether the peer address is added to the MDC under
// [MDCPeerAddress]. Enabled by default.
func WithPeerInfo(enabled bool) Option {
	return func(c *config) { c.includePeer = enabled }
}

// WithPayloadSizes controls whether serialized proto message sizes are
// attached to the completion line. Enabled by default.
func WithPayloadSizes(enabled bool) Option {
	return func(c *config) { c.includeSizes = enabled }
}

// WithOTel enables an otelgrpc stats handler in [ServerOptions]. Disabled
// by default.
func WithOTel(enabled bool) Option {
	return func(c *config) { c.enableOTel = enabled }
}

// WithTracerProvider sets the tracer provider used when OTel
// instrumentation is enabled. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

// WithPropagators sets the propagators used when OTel instrumentation is
// enabled. Defaults to the global propagators.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(c *config) { c.propagators = p }
}
