package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const RelayService = "relay"

// HealthServer exposes grpc.health.v1.Health for the relay.
// The relay service starts NOT_SERVING and is flipped by the process lifecycle.
type HealthServer struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

func NewHealthServer(log *slog.Logger, opts ...grpc.ServerOption) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus(RelayService, healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(server, h)
	return &HealthServer{log: log, server: server, health: h}
}

func (s *HealthServer) Serving() {
	s.health.SetServingStatus(RelayService, healthpb.HealthCheckResponse_SERVING)
}

func (s *HealthServer) NotServing() {
	s.health.SetServingStatus(RelayService, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Serve blocks until the listener fails or Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info(fmt.Sprintf("gRPC health listening on %s", lis.Addr()))
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains in-flight calls until ctx expires.
func (s *HealthServer) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
}
