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

// Package jsonlayoutgrpc provides gRPC server interceptors that feed RPC
// metadata into jsonlayout's mapped diagnostic context. Each RPC gets a
// request ID (honoring an inbound x-request-id metadata value or
// generating a UUID), the full method name, and the peer address in the
// MDC, plus a nested diagnostic scope named after the method. A
// request-scoped logger is stored in the context for handlers to retrieve
// with [jsonlayout.Logger], and one completion line is logged per RPC with
// the status code and latency.
//
// [ServerOptions] bundles the interceptors with an optional otelgrpc
// stats handler:
//
//	srv := grpc.NewServer(jsonlayoutgrpc.ServerOptions(
//		jsonlayoutgrpc.WithLogger(logger),
//	)...)
package jsonlayoutgrpc
