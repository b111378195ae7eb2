// Package backend talks to the agent-management service over gRPC.
package backend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/avika-ai/avika-bff/bff/internal/auth"
	"github.com/avika-ai/avika-bff/common/config"
	"github.com/avika-ai/avika-bff/common/middleware"
)

// Metadata keys attached to every outgoing call.
const (
	MetadataRequestID = "x-request-id"
	MetadataUser      = "x-user"
)

// Dial creates the shared client connection described by cfg. The
// connection is lazy; the first RPC establishes it.
func Dial(cfg config.BackendConfig, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	creds, err := transportCredentials(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(unaryMetadataInterceptor),
		grpc.WithChainStreamInterceptor(streamMetadataInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(cfg.GRPCAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client for %s: %w", cfg.GRPCAddress, err)
	}
	return conn, nil
}

func transportCredentials(cfg config.BackendConfig) (credentials.TransportCredentials, error) {
	if !cfg.TLS {
		return insecure.NewCredentials(), nil
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read backend CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return credentials.NewTLS(tlsCfg), nil
}

// OutgoingContext copies the request ID and authenticated user from ctx
// into outgoing gRPC metadata.
func OutgoingContext(ctx context.Context) context.Context {
	var kv []string
	if id := middleware.GetRequestID(ctx); id != "" {
		kv = append(kv, MetadataRequestID, id)
	}
	if user := auth.Username(ctx); user != "" {
		kv = append(kv, MetadataUser, user)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func unaryMetadataInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	return invoker(OutgoingContext(ctx), method, req, reply, cc, opts...)
}

func streamMetadataInterceptor(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return streamer(OutgoingContext(ctx), desc, cc, method, opts...)
}
