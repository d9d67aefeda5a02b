package status

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the interview loop.
const ServiceName = "sidekick.Session"

// HealthServer serves grpc.health.v1 for the session.
type HealthServer struct {
	port   int
	health *health.Server
	server *grpc.Server
}

// NewHealthServer creates a gRPC health server. Both the overall and the
// session service start as NOT_SERVING.
func NewHealthServer(port int) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)

	return &HealthServer{port: port, health: h, server: srv}
}

// SetServing reports the session loop as running or stopped.
func (h *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", st)
	h.health.SetServingStatus(ServiceName, st)
}

// ListenAndServe starts the gRPC server. It blocks until the context is
// cancelled.
func (h *HealthServer) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", h.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return h.Serve(ctx, lis)
}

// Serve serves on lis until the context is cancelled.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	slog.Info("grpc health server listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		slog.Info("grpc health server shutting down")
		h.health.Shutdown()
		h.server.GracefulStop()
	}()

	return h.server.Serve(lis)
}
