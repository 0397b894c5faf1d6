package server

import (
	"chat-room/runtime/workers"
	"log/slog"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewHealthServer builds the gRPC server exposing grpc.health.v1.Health.
// The presence service starts as SERVING and then follows the sweep outcomes
// reported through the returned health server.
func NewHealthServer(log *slog.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			sdkgrpc.UnaryLoggingInterceptor(log),
		))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(workers.PresenceHealthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	return s, healthServer
}
