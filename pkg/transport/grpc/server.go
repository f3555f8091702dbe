package grpc

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/amirimatin/eventstore-probes/pkg/transport"
)

// Overall is the empty service name health clients query by default.
const Overall = ""

// Server exposes the standard gRPC health service. Serving status is set
// per service by the caller and may be changed before or after Start.
type Server struct {
	bind   string
	tlsCfg *tls.Config
	health *health.Server

	mu  sync.Mutex
	lis net.Listener
	srv *grpc.Server
}

// NewServer prepares a health server for bind. Every service, the overall
// one included, starts NOT_SERVING.
func NewServer(bind string, services ...string) *Server {
	h := health.NewServer()
	h.SetServingStatus(Overall, healthpb.HealthCheckResponse_NOT_SERVING)
	for _, svc := range services {
		h.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return &Server{bind: bind, health: h}
}

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// SetServing flips one service between SERVING and NOT_SERVING.
func (s *Server) SetServing(service string, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, st)
}

// Start listens and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	opts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}),
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}),
	}
	if s.tlsCfg != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg)))
	}
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, s.health)

	s.mu.Lock()
	s.lis, s.srv = lis, srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(sctx)
	}()
	go func() { _ = srv.Serve(lis) }()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.bind
}

// Stop shuts down gracefully, forcing the stop when ctx expires first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.health.Shutdown()
	ch := make(chan struct{})
	go func() { srv.GracefulStop(); close(ch) }()
	select {
	case <-ch:
	case <-ctx.Done():
		srv.Stop()
	}
	return nil
}

var _ transport.HealthSetter = (*Server)(nil)
