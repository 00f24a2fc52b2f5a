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

// Package jsonlayout renders log events as single-line JSON records in the
// layout popularized by log4j's JSONLayout: a fixed field order of `level`,
// `logger`, `threadName`, and `message`, followed by optional `MDC`, `NDC`,
// and `throwable` fields. Each call to [Layout.Format] produces exactly one
// newline-terminated line whose body parses as valid JSON regardless of the
// characters present in the event, which keeps the output safe for
// line-oriented shippers and grep-style tooling.
//
// The layout itself is a pure function over an [Event] plus an immutable set
// of configured MDC keys; it performs no I/O and needs no locking, so a
// single Layout may be shared by any number of goroutines.
//
// Diagnostic context travels on [context.Context] rather than in implicit
// thread-local storage. [WithMDC] and [WithMDCValues] attach keyed values,
// [PushNDC] appends nested scopes, and the accessors [MDC] and [NDC] read
// snapshots back out. The [Handler] type plugs the layout into [log/slog],
// assembling an Event per record from the record itself, the calling
// goroutine, and the diagnostic context carried by the record's context.
//
// # Quick Start
//
//	h, err := jsonlayout.NewHandler(os.Stdout,
//		jsonlayout.WithLoggerName("org.elasticsearch"),
//		jsonlayout.WithMDCKeyString("UserID,RequestID,IPAddress"),
//	)
//	if err != nil {
//		log.Fatalf("create jsonlayout handler: %v", err)
//	}
//	defer h.Close()
//
//	logger := slog.New(h)
//	ctx := jsonlayout.WithMDC(context.Background(), "RequestID", "r-1")
//	logger.InfoContext(ctx, "Hello World")
//
// # Subpackages
//
//   - [github.com/elasticflume/jsonlayout/jsonlayouthttp] provides net/http
//     middleware that feeds request metadata into the MDC and optionally
//     instruments requests with OpenTelemetry.
//   - [github.com/elasticflume/jsonlayout/jsonlayoutgrpc] provides gRPC
//     server interceptors that do the same for RPCs.
//
// Handlers can be redirected to stderr or a file, and several aspects of
// their behaviour can be controlled through environment variables (for
// example JSONLAYOUT_LEVEL or JSONLAYOUT_MDC_KEYS) so the same binary can
// run locally and in production without code changes.
package jsonlayout
