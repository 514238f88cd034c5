// Package server provides the HTTP API and gRPC health server lifecycles.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// RulesService is the health service name that reports rule set readiness.
// The empty service name reports process liveness and is always SERVING.
const RulesService = "launchrules.Rules"

// GRPCServer serves the standard gRPC health protocol.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	addr   string
	logger *slog.Logger
}

// NewGRPCServer creates a health server bound to host:port on Start.
// RulesService starts NOT_SERVING until SetReady(true).
func NewGRPCServer(host string, port int, logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(RulesService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		addr:   fmt.Sprintf("%s:%d", host, port),
		logger: logger,
	}
}

// SetReady updates the RulesService status.
func (s *GRPCServer) SetReady(ready bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ready {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(RulesService, status)
}

// Start binds the listener and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.logger.Info("gRPC health server listening", "addr", listener.Addr().String())
	return s.Serve(listener)
}

// Serve serves on an existing listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server with a 30-second timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(30 * time.Second):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
