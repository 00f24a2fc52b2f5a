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

package jsonlayout

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	loggerContextKey contextKey = iota
	mdcContextKey
	ndcContextKey
)

// ContextWithLogger returns a child context that stores logger so middleware
// and handlers further down the call chain can retrieve a request-scoped
// logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves a logger stored in ctx via ContextWithLogger. If no logger
// is found, slog.Default() is returned so callers always receive a usable
// logger.
func Logger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithMDC returns a child context whose mapped diagnostic context includes
// key with the given value. The stored map is never mutated: each call
// copies, so contexts derived earlier keep their view.
func WithMDC(ctx context.Context, key, value string) context.Context {
	if ctx == nil || key == "" {
		return ctx
	}
	return WithMDCValues(ctx, map[string]string{key: value})
}

// WithMDCValues returns a child context whose mapped diagnostic context is
// the parent's merged with values. Later entries win on key collisions.
func WithMDCValues(ctx context.Context, values map[string]string) context.Context {
	if ctx == nil || len(values) == 0 {
		return ctx
	}
	existing := mdcFromContext(ctx)
	merged := make(map[string]string, len(existing)+len(values))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range values {
		if k == "" {
			continue
		}
		merged[k] = v
	}
	return context.WithValue(ctx, mdcContextKey, merged)
}

// MDC returns a snapshot of the mapped diagnostic context carried by ctx.
// The returned map is a copy; mutating it does not affect the context.
func MDC(ctx context.Context) map[string]string {
	existing := mdcFromContext(ctx)
	snapshot := make(map[string]string, len(existing))
	for k, v := range existing {
		snapshot[k] = v
	}
	return snapshot
}

// mdcFromContext returns the shared MDC map stored in ctx, or nil. Callers
// must treat the result as read-only; it may be visible to other goroutines.
func mdcFromContext(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(mdcContextKey).(map[string]string)
	return m
}

// PushNDC returns a child context whose nested diagnostic context has scope
// appended. Stacks are copy-on-write, so sibling contexts never observe each
// other's pushes.
func PushNDC(ctx context.Context, scope string) context.Context {
	if ctx == nil || scope == "" {
		return ctx
	}
	existing := ndcFromContext(ctx)
	stack := make([]string, len(existing), len(existing)+1)
	copy(stack, existing)
	stack = append(stack, scope)
	return context.WithValue(ctx, ndcContextKey, stack)
}

// NDC returns a snapshot of the nested diagnostic context in push order,
// oldest scope first. The returned slice is a copy.
func NDC(ctx context.Context) []string {
	existing := ndcFromContext(ctx)
	if len(existing) == 0 {
		return nil
	}
	snapshot := make([]string, len(existing))
	copy(snapshot, existing)
	return snapshot
}

// ndcFromContext returns the shared NDC stack stored in ctx, or nil. The
// result is read-only for the same reason as mdcFromContext.
func ndcFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(ndcContextKey).([]string)
	return s
}
