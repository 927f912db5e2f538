package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/mastermind/pkg/log"
	"github.com/cuemby/mastermind/pkg/worker"
)

// ServiceName is the full gRPC service name the coordinator exposes.
// Every registered handler becomes one unary method under it.
const ServiceName = "mastermind.v1.Mastermind"

// Server exposes a worker registry over gRPC. The service descriptor
// is derived from the registry at construction time, so every handler
// must be registered before NewServer is called.
type Server struct {
	registry *worker.Registry
	grpc     *grpc.Server
	logger   zerolog.Logger
}

// NewServer builds a gRPC server serving the registry's handlers.
func NewServer(registry *worker.Registry) *Server {
	s := &Server{
		registry: registry,
		logger:   log.WithComponent("transport"),
	}
	s.grpc = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnaryInterceptor(s.logCalls),
	)
	s.grpc.RegisterService(s.serviceDesc(), nil)
	return s
}

// Start listens on addr and serves until Stop is called.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	return s.Serve(lis)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC API listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

// serviceDesc builds a unary method per registered handler name.
func (s *Server) serviceDesc() *grpc.ServiceDesc {
	names := s.registry.Names()
	methods := make([]grpc.MethodDesc, 0, len(names))
	for _, name := range names {
		methods = append(methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    s.methodHandler(name),
		})
	}
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*interface{})(nil),
		Methods:     methods,
	}
}

func (s *Server) methodHandler(name string) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(_ interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		var payload []byte
		if err := dec(&payload); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return s.dispatch(ctx, name, payload)
		}
		info := &grpc.UnaryServerInfo{
			FullMethod: fmt.Sprintf("/%s/%s", ServiceName, name),
		}
		return interceptor(ctx, payload, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.dispatch(ctx, name, req.([]byte))
		})
	}
}

// dispatch hands the raw payload to the registry. Handler failures
// come back inside the response envelope; only an unencodable result
// surfaces as a transport error.
func (s *Server) dispatch(ctx context.Context, name string, payload []byte) (interface{}, error) {
	resp, err := s.registry.Dispatch(ctx, name, payload)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return &resp, nil
}

// logCalls logs every request. Request counters live in the registry,
// which also sees dispatches that bypass the transport.
func (s *Server) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	started := time.Now()
	resp, err := handler(ctx, req)

	evt := s.logger.Debug()
	if err != nil {
		evt = s.logger.Warn().Err(err)
	}
	evt.Str("method", info.FullMethod).
		Dur("took", time.Since(started)).
		Msg("Handled request")
	return resp, err
}
