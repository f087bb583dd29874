package api

import (
	"fmt"
	"net"
	"time"

	"github.com/cuemby/flightwatch/pkg/log"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for flightwatch.
// The empty name reports overall server health and mirrors it.
const ServiceName = "flightwatch"

// GRPCServer exposes the standard gRPC health service, mirroring the
// recovery coordinator status
type GRPCServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewGRPCServer creates a gRPC server whose health starts as NOT_SERVING
func NewGRPCServer() *GRPCServer {
	logger := log.WithComponent("grpc")
	s := &GRPCServer{
		grpc:   grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(logger))),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setServing(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Start listens on addr and serves until Stop
func (s *GRPCServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health listening")
	return s.grpc.Serve(lis)
}

// Stop drains the gRPC server, waiting up to timeout for open streams such as
// Health/Watch to finish before closing them forcibly.
func (s *GRPCServer) Stop(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn().Dur("timeout", timeout).Msg("graceful stop timed out, closing open streams")
		s.grpc.Stop()
		<-done
	}
}

// SetStatus maps a coordinator status onto the health service. It has the
// signature expected by Coordinator.OnStatusChange.
func (s *GRPCServer) SetStatus(st types.Status) {
	switch st {
	case types.StatusOK:
		s.setServing(healthpb.HealthCheckResponse_SERVING)
	case types.StatusShutdown:
		// Shutdown pins every service to NOT_SERVING
		s.health.Shutdown()
	default:
		s.setServing(healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func (s *GRPCServer) setServing(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
