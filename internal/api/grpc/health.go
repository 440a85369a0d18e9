package grpc

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"voluntia-backend/internal/logger"
)

// ServiceName is the gRPC health service name of the application API.
const ServiceName = "voluntia.v1.Applications"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthMonitor pings the database periodically and publishes the result
// through the standard gRPC health service.
type HealthMonitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	server   *health.Server

	mu      sync.RWMutex
	lastErr error
}

func NewHealthMonitor(pinger Pinger, interval time.Duration) *HealthMonitor {
	m := &HealthMonitor{
		pinger:   pinger,
		interval: interval,
		timeout:  2 * time.Second,
		server:   health.NewServer(),
	}
	m.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return m
}

// Run pings the database until ctx is cancelled, then marks every service NOT_SERVING.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.ping(ctx)
	for {
		select {
		case <-ctx.Done():
			m.server.Shutdown()
			return
		case <-ticker.C:
			m.ping(ctx)
		}
	}
}

func (m *HealthMonitor) ping(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.pinger.PingContext(pingCtx)

	m.mu.Lock()
	changed := (err == nil) != (m.lastErr == nil)
	m.lastErr = err
	m.mu.Unlock()

	if err != nil {
		if changed {
			logger.Warn("Database unreachable, reporting NOT_SERVING", "error", err)
		}
		m.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	if changed {
		logger.Info("Database reachable, reporting SERVING")
	}
	m.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (m *HealthMonitor) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(ServiceName, status)
}

// Check pings the database directly. It backs the HTTP health endpoint.
func (m *HealthMonitor) Check(ctx context.Context) error {
	return m.pinger.PingContext(ctx)
}

// HealthServer returns the gRPC health implementation to register.
func (m *HealthMonitor) HealthServer() healthpb.HealthServer {
	return m.server
}
