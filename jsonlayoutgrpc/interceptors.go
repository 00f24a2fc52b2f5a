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
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/elasticflume/jsonlayout"
)

// RequestIDMetadataKey is the default incoming metadata key consulted for
// a caller-supplied request ID.
const RequestIDMetadataKey = "x-request-id"

// MDC keys populated by the server interceptors.
const (
	MDCRequestID   = "RequestID"
	MDCMethod      = "Method"
	MDCPeerAddress = "PeerAddress"
)

// UnaryServerInterceptor stamps each unary RPC with a diagnostic context
// before the handler runs. The request ID, full method name, and peer
// address land in the MDC, a nested diagnostic scope named after the
// method is pushed, and the configured logger is stored in the context.
// One completion line is logged per RPC with the status code and latency.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	cfg := applyOptions(opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = stampContext(ctx, cfg, info.FullMethod)

		resp, err := handler(ctx, req)

		attrs := []slog.Attr{
			slog.String("grpc.code", status.Code(err).String()),
			slog.Duration("latency", time.Since(start)),
		}
		if cfg.includeSizes {
			if n, ok := payloadSize(req); ok {
				attrs = append(attrs, slog.Int("request_bytes", n))
			}
			if n, ok := payloadSize(resp); ok {
				attrs = append(attrs, slog.Int("response_bytes", n))
			}
		}
		cfg.logger.LogAttrs(ctx, completionLevel(status.Code(err)), "rpc handled", attrs...)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart of
// [UnaryServerInterceptor]. Message counts replace payload sizes on the
// completion line.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	cfg := applyOptions(opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := stampContext(ss.Context(), cfg, info.FullMethod)

		wrapped := &serverStream{ServerStream: ss, ctx: ctx}
		err := handler(srv, wrapped)

		cfg.logger.LogAttrs(ctx, completionLevel(status.Code(err)), "rpc handled",
			slog.String("grpc.code", status.Code(err).String()),
			slog.Duration("latency", time.Since(start)),
			slog.Int64("received_messages", wrapped.received),
			slog.Int64("sent_messages", wrapped.sent),
		)
		return err
	}
}

// StatsHandler returns an otelgrpc server stats handler configured from
// opts, for callers assembling their own grpc.ServerOption list.
func StatsHandler(opts ...Option) stats.Handler {
	return otelgrpc.NewServerHandler(statsHandlerOptions(applyOptions(opts))...)
}

// ServerOptions bundles the server interceptors, plus an otelgrpc stats
// handler when OTel instrumentation is enabled, into grpc.ServerOptions.
func ServerOptions(opts ...Option) []grpc.ServerOption {
	cfg := applyOptions(opts)

	var serverOpts []grpc.ServerOption
	if cfg.enableOTel {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(statsHandlerOptions(cfg)...)))
	}
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(opts...)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(opts...)),
	)
	return serverOpts
}

func statsHandlerOptions(cfg *config) []otelgrpc.Option {
	var opts []otelgrpc.Option
	if cfg.tracerProvider != nil {
		opts = append(opts, otelgrpc.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagators != nil {
		opts = append(opts, otelgrpc.WithPropagators(cfg.propagators))
	}
	return opts
}

// stampContext populates the MDC, pushes the method scope, and stores the
// configured logger in the context.
func stampContext(ctx context.Context, cfg *config, fullMethod string) context.Context {
	mdc := map[string]string{
		MDCRequestID: requestID(ctx, cfg),
		MDCMethod:    fullMethod,
	}
	if cfg.includePeer {
		if addr, ok := peerAddress(ctx); ok {
			mdc[MDCPeerAddress] = addr
		}
	}

	ctx = jsonlayout.WithMDCValues(ctx, mdc)
	ctx = jsonlayout.PushNDC(ctx, fullMethod)
	return jsonlayout.ContextWithLogger(ctx, cfg.logger)
}

func requestID(ctx context.Context, cfg *config) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(cfg.requestIDKey); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return uuid.NewString()
}

// peerAddress extracts the remote host portion of the peer address.
func peerAddress(ctx context.Context) (string, bool) {
	pr, ok := peer.FromContext(ctx)
	if !ok || pr == nil || pr.Addr == nil {
		return "", false
	}
	addr := pr.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host, true
	}
	return addr, true
}

// payloadSize reports the wire size of a proto message; non-proto payloads
// are skipped.
func payloadSize(m any) (int, bool) {
	msg, ok := m.(proto.Message)
	if !ok || msg == nil {
		return 0, false
	}
	return proto.Size(msg), true
}

func completionLevel(code codes.Code) slog.Level {
	switch code {
	case codes.OK:
		return slog.LevelInfo
	case codes.Canceled, codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
		codes.PermissionDenied, codes.Unauthenticated, codes.ResourceExhausted,
		codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx      context.Context
	received int64
	sent     int64
}

func (s *serverStream) Context() context.Context { return s.ctx }

func (s *serverStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)
	if err == nil {
		s.received++
	}
	return err
}

func (s *serverStream) SendMsg(m any) error {
	err := s.ServerStream.SendMsg(m)
	if err == nil {
		s.sent++
	}
	return err
}
