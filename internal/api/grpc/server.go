package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name of the task API.
const ServiceName = "tarefa.TaskService"

const probeTimeout = 3 * time.Second

// Pinger - зависимость, доступность которой проверяется
type Pinger interface {
	Ping(ctx context.Context) error
}

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
}

func NewGRPCServer() *GRPCServer {
	s := &GRPCServer{
		health: health.NewServer(),
	}
	s.server = grpc.NewServer(
		grpc.UnaryInterceptor(s.unaryInterceptor),
	)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)

	// пока хранилище не проверено
	s.setServing(false)
	return s
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// Watch probes deps every interval and publishes the result as the health
// status until ctx is cancelled. The service serves only while every
// dependency answers.
func (s *GRPCServer) Watch(ctx context.Context, interval time.Duration, deps map[string]Pinger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.probe(ctx, deps)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *GRPCServer) probe(ctx context.Context, deps map[string]Pinger) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	serving := true
	for name, dep := range deps {
		if err := dep.Ping(ctx); err != nil {
			slog.Warn("health probe failed", "dependency", name, "error", err)
			serving = false
		}
	}
	s.setServing(serving)
}

func (s *GRPCServer) setServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *GRPCServer) unaryInterceptor(ctx context.Context, req any,
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("gRPC call", "method", info.FullMethod, "duration", time.Since(start), "error", err)
	return resp, err
}
