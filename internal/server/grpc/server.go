package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"

	"github.com/rzbill/ensdb/internal/runtime"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// RequestIDKey is the metadata key carrying the request id.
const RequestIDKey = "x-request-id"

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger logpkg.Logger

	// HealthInterval is how often the runtime is probed while serving.
	HealthInterval time.Duration
}

// New constructs a gRPC server and registers the records, health and
// reflection services.
func New(rt *runtime.Runtime, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	s := &Server{
		rt:             rt,
		health:         health.NewServer(),
		logger:         logger.WithComponent("grpc"),
		HealthInterval: 5 * time.Second,
	}
	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.unaryRequestID),
		grpc.ChainStreamInterceptor(s.streamRequestID),
	)
	s.grpc = grpc.NewServer(opts...)
	registerRecordsServer(s.grpc, &recordsSvc{rt: rt, logger: s.logger})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.refreshHealth(context.Background())
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	go s.watchHealth(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func requestIDFrom(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDKey); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

func (s *Server) unaryRequestID(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx = logpkg.ContextWithRequestID(ctx, requestIDFrom(ctx))
	ctx = logpkg.ContextWithOperation(ctx, info.FullMethod)
	start := time.Now()
	resp, err := handler(ctx, req)
	l := s.logger.WithContext(ctx).With(logpkg.Duration("took", time.Since(start)))
	if err != nil {
		l.Warn("rpc failed", logpkg.Err(err))
	} else {
		l.Debug("rpc")
	}
	return resp, err
}

type ctxStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (c ctxStream) Context() context.Context { return c.ctx }

func (s *Server) streamRequestID(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx := logpkg.ContextWithRequestID(ss.Context(), requestIDFrom(ss.Context()))
	ctx = logpkg.ContextWithOperation(ctx, info.FullMethod)
	err := handler(srv, ctxStream{ServerStream: ss, ctx: ctx})
	if err != nil {
		s.logger.WithContext(ctx).Warn("stream failed", logpkg.Err(err))
	}
	return err
}
