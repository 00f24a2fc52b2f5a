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

package jsonlayoutgrpc_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/elasticflume/jsonlayout"
	"github.com/elasticflume/jsonlayout/jsonlayoutgrpc"
)

func newRPCLogger(t *testing.T, mdcKeys ...string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts := []jsonlayout.Option{
		jsonlayout.WithRedirectWriter(buf),
		jsonlayout.WithLoggerName("grpc.access"),
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

func peerContext(ctx context.Context, addr string) context.Context {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		panic(err)
	}
	return peer.NewContext(ctx, &peer.Peer{Addr: tcp})
}

func TestUnaryInterceptorPopulatesMDC(t *testing.T) {
	logger, _ := newRPCLogger(t)
	interceptor := jsonlayoutgrpc.UnaryServerInterceptor(jsonlayoutgrpc.WithLogger(logger))

	var seen map[string]string
	var scope []string
	ctx := peerContext(context.Background(), "203.0.113.9:52000")

	_, err := interceptor(ctx, wrapperspb.String("payload"),
		&grpc.UnaryServerInfo{FullMethod: "/flume.Collector/Append"},
		func(ctx context.Context, req any) (any, error) {
			seen = jsonlayout.MDC(ctx)
			scope = jsonlayout.NDC(ctx)
			return wrapperspb.String("ack"), nil
		})
	require.NoError(t, err)

	assert.Equal(t, "/flume.Collector/Append", seen[jsonlayoutgrpc.MDCMethod])
	assert.Equal(t, "203.0.113.9", seen[jsonlayoutgrpc.MDCPeerAddress])

	_, parseErr := uuid.Parse(seen[jsonlayoutgrpc.MDCRequestID])
	assert.NoError(t, parseErr, "generated request ID should be a UUID")

	assert.Equal(t, []string{"/flume.Collector/Append"}, scope)
}

func TestUnaryInterceptorHonorsInboundRequestID(t *testing.T) {
	logger, _ := newRPCLogger(t)
	interceptor := jsonlayoutgrpc.UnaryServerInterceptor(jsonlayoutgrpc.WithLogger(logger))

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(jsonlayoutgrpc.RequestIDMetadataKey, "rpc-7"))

	var seen map[string]string
	_, err := interceptor(ctx, nil,
		&grpc.UnaryServerInfo{FullMethod: "/flume.Collector/Append"},
		func(ctx context.Context, req any) (any, error) {
			seen = jsonlayout.MDC(ctx)
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "rpc-7", seen[jsonlayoutgrpc.MDCRequestID])
}

func TestUnaryInterceptorCompletionLine(t *testing.T) {
	logger, buf := newRPCLogger(t, jsonlayoutgrpc.MDCRequestID, jsonlayoutgrpc.MDCMethod)
	interceptor := jsonlayoutgrpc.UnaryServerInterceptor(jsonlayoutgrpc.WithLogger(logger))

	req := wrapperspb.String("payload")
	resp := wrapperspb.String("ack")
	_, err := interceptor(context.Background(), req,
		&grpc.UnaryServerInfo{FullMethod: "/flume.Collector/Append"},
		func(ctx context.Context, _ any) (any, error) { return resp, nil })
	require.NoError(t, err)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	line := lines[0]

	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "grpc.access", line["logger"])
	assert.Equal(t, "rpc handled", line["message"])
	assert.Equal(t, codes.OK.String(), line["grpc.code"])
	assert.Equal(t, float64(proto.Size(req)), line["request_bytes"])
	assert.Equal(t, float64(proto.Size(resp)), line["response_bytes"])

	mdc, ok := line["MDC"].(map[string]any)
	require.True(t, ok, "completion line should carry the RPC MDC")
	assert.Equal(t, "/flume.Collector/Append", mdc[jsonlayoutgrpc.MDCMethod])

	assert.Equal(t, "/flume.Collector/Append", line["NDC"])
}

func TestUnaryInterceptorStatusDrivesLevel(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"ok", nil, "INFO"},
		{"not found", status.Error(codes.NotFound, "missing"), "WARN"},
		{"internal", status.Error(codes.Internal, "broken"), "ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, buf := newRPCLogger(t)
			interceptor := jsonlayoutgrpc.UnaryServerInterceptor(jsonlayoutgrpc.WithLogger(logger))

			_, err := interceptor(context.Background(), nil,
				&grpc.UnaryServerInfo{FullMethod: "/flume.Collector/Append"},
				func(ctx context.Context, _ any) (any, error) { return nil, tc.err })
			if tc.err != nil {
				require.Error(t, err)
			}

			lines := decodeLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tc.level, lines[0]["level"])
			assert.Equal(t, status.Code(tc.err).String(), lines[0]["grpc.code"])
		})
	}
}

func TestUnaryInterceptorPayloadSizesOptOut(t *testing.T) {
	logger, buf := newRPCLogger(t)
	interceptor := jsonlayoutgrpc.UnaryServerInterceptor(
		jsonlayoutgrpc.WithLogger(logger),
		jsonlayoutgrpc.WithPayloadSizes(false),
	)

	_, err := interceptor(context.Background(), wrapperspb.String("payload"),
		&grpc.UnaryServerInfo{FullMethod: "/flume.Collector/Append"},
		func(ctx context.Context, _ any) (any, error) { return wrapperspb.String("ack"), nil })
	require.NoError(t, err)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "request_bytes")
	assert.NotContains(t, lines[0], "response_bytes")
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx      context.Context
	inbound  []any
	received int
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func (s *fakeServerStream) RecvMsg(m any) error {
	if s.received >= len(s.inbound) {
		return io.EOF
	}
	s.received++
	return nil
}

func (s *fakeServerStream) SendMsg(m any) error { return nil }

func TestStreamInterceptorCountsMessages(t *testing.T) {
	logger, buf := newRPCLogger(t)
	interceptor := jsonlayoutgrpc.StreamServerInterceptor(jsonlayoutgrpc.WithLogger(logger))

	stream := &fakeServerStream{
		ctx:     context.Background(),
		inbound: []any{"a", "b", "c"},
	}

	var seen map[string]string
	err := interceptor(nil, stream,
		&grpc.StreamServerInfo{FullMethod: "/flume.Collector/AppendStream", IsClientStream: true},
		func(srv any, ss grpc.ServerStream) error {
			seen = jsonlayout.MDC(ss.Context())
			var msg any
			for {
				if err := ss.RecvMsg(&msg); err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					return err
				}
			}
			return ss.SendMsg("done")
		})
	require.NoError(t, err)

	assert.Equal(t, "/flume.Collector/AppendStream", seen[jsonlayoutgrpc.MDCMethod])

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, float64(3), lines[0]["received_messages"])
	assert.Equal(t, float64(1), lines[0]["sent_messages"])
	assert.Equal(t, codes.OK.String(), lines[0]["grpc.code"])
}

func TestStreamInterceptorPropagatesError(t *testing.T) {
	logger, buf := newRPCLogger(t)
	interceptor := jsonlayoutgrpc.StreamServerInterceptor(jsonlayoutgrpc.WithLogger(logger))

	wantErr := status.Error(codes.ResourceExhausted, "backpressure")
	err := interceptor(nil, &fakeServerStream{ctx: context.Background()},
		&grpc.StreamServerInfo{FullMethod: "/flume.Collector/AppendStream"},
		func(srv any, ss grpc.ServerStream) error { return wantErr })
	require.ErrorIs(t, err, wantErr)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, codes.ResourceExhausted.String(), lines[0]["grpc.code"])
}

func TestServerOptionsBundle(t *testing.T) {
	logger, _ := newRPCLogger(t)

	opts := jsonlayoutgrpc.ServerOptions(jsonlayoutgrpc.WithLogger(logger))
	assert.Len(t, opts, 2)

	withOTel := jsonlayoutgrpc.ServerOptions(
		jsonlayoutgrpc.WithLogger(logger),
		jsonlayoutgrpc.WithOTel(true),
	)
	assert.Len(t, withOTel, 3)

	assert.NotNil(t, jsonlayoutgrpc.StatsHandler())
}

func TestContextLoggerAvailableToHandler(t *testing.T) {
	logger, _ := newRPCLogger(t)
	interceptor := jsonlayoutgrpc.UnaryServerInterceptor(jsonlayoutgrpc.WithLogger(logger))

	var got *slog.Logger
	_, err := interceptor(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/flume.Collector/Append"},
		func(ctx context.Context, _ any) (any, error) {
			got = jsonlayout.Logger(ctx)
			return nil, nil
		})
	require.NoError(t, err)
	assert.Same(t, logger, got)
}
