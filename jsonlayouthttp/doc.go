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

// Package jsonlayouthttp provides net/http middleware that feeds request
// metadata into jsonlayout's mapped diagnostic context. Each request gets a
// request ID (honoring an inbound X-Request-Id header or generating a UUID),
// client address, method, and path in the MDC, a nested diagnostic scope
// named after the request line, and a request-scoped logger stored in the
// context.
//
// Requests can optionally be instrumented with OpenTelemetry via
// [otelhttp], in which case the resulting span is visible to jsonlayout's
// trace correlation fields.
//
//	mux := http.NewServeMux()
//	handler := jsonlayouthttp.Middleware(
//		jsonlayouthttp.WithLogger(logger),
//	)(mux)
package jsonlayouthttp
