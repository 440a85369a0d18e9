package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"voluntia-backend/internal/logger"
)

// NewServer builds the gRPC server exposing health and reflection.
func NewServer(monitor *HealthMonitor) *grpc.Server {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(UnaryLogging()),
	)
	healthpb.RegisterHealthServer(s, monitor.HealthServer())

	// Register reflection service for grpcurl
	reflection.Register(s)
	return s
}

// UnaryLogging logs each unary call and converts handler panics into
// Internal errors.
func UnaryLogging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC handler panicked", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
			logger.Debug("gRPC call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
		}()
		return handler(ctx, req)
	}
}
