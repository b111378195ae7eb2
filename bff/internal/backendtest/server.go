// Package backendtest runs an in-process agent.AgentService over bufconn
// for tests. Handlers are plain functions so each test scripts its own backend.
package backendtest

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the backend gRPC service.
const ServiceName = "agent.AgentService"

// UnaryMethods lists the unary RPCs the stub registers.
var UnaryMethods = []string{
	"ListAgents",
	"UpdateAgent",
	"ListAlertRules",
	"CreateAlertRule",
	"GenerateReport",
	"DownloadReport",
}

// StreamFunc serves one StreamAnalytics call.
type StreamFunc func(req *structpb.Struct, stream grpc.ServerStream) error

// UnaryFunc serves one unary call.
type UnaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Handlers scripts the stub. Nil handlers answer codes.Unimplemented.
type Handlers struct {
	StreamAnalytics StreamFunc
	Unary           map[string]UnaryFunc
}

type agentService interface {
	streamAnalytics(req *structpb.Struct, stream grpc.ServerStream) error
	unary(method string, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type stub struct {
	h Handlers
}

func (s *stub) streamAnalytics(req *structpb.Struct, stream grpc.ServerStream) error {
	if s.h.StreamAnalytics == nil {
		return status.Error(codes.Unimplemented, "StreamAnalytics not scripted")
	}
	return s.h.StreamAnalytics(req, stream)
}

func (s *stub) unary(method string, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fn, ok := s.h.Unary[method]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "%s not scripted", method)
	}
	return fn(ctx, req)
}

func serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*agentService)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "StreamAnalytics",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(structpb.Struct)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(agentService).streamAnalytics(req, stream)
			},
		}},
	}
	for _, name := range UnaryMethods {
		method := name
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: method,
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				req := new(structpb.Struct)
				if err := dec(req); err != nil {
					return nil, err
				}
				return srv.(agentService).unary(method, ctx, req)
			},
		})
	}
	return desc
}

// Start serves h on an in-memory listener and returns a client connection
// to it. Both are torn down when the test ends.
func Start(t testing.TB, h Handlers) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(serviceDesc(), &stub{h: h})
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return conn
}

// Emit sends each map as one structpb message on stream.
func Emit(stream grpc.ServerStream, msgs ...map[string]any) error {
	for _, m := range msgs {
		s, err := structpb.NewStruct(m)
		if err != nil {
			return err
		}
		if err := stream.SendMsg(s); err != nil {
			return err
		}
	}
	return nil
}
