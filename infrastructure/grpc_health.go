package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported for the settlement engine
const HealthService = "settlement.v1.Engine"

// GRPCHealthServer exposes the standard gRPC health service. Its status
// follows the database: SERVING while pings succeed, NOT_SERVING otherwise.
type GRPCHealthServer struct {
	addr     string
	server   *grpc.Server
	health   *health.Server
	check    HealthFunc
	interval time.Duration
}

// NewGRPCHealthServer creates a health server polling check every interval
func NewGRPCHealthServer(addr string, check HealthFunc, interval time.Duration) *GRPCHealthServer {
	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCHealthServer{
		addr:     addr,
		server:   server,
		health:   healthServer,
		check:    check,
		interval: interval,
	}
}

// Start listens and keeps the status current until ctx ends
func (s *GRPCHealthServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.refresh(ctx)
	go s.poll(ctx)
	go func() {
		log.WithField("addr", lis.Addr().String()).Info("gRPC health server listening")
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.WithError(err).Error("gRPC health server stopped")
		}
	}()
	return nil
}

func (s *GRPCHealthServer) poll(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *GRPCHealthServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		log.WithError(err).Warn("Health check failing")
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthService, status)
}

// Stop marks the service as shutting down and stops the server
func (s *GRPCHealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
