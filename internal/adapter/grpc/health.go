package grpc

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// UserServiceName is the service name reported by the gRPC health service
// next to the overall ("") status.
const UserServiceName = "users.v1.UserService"

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker probes the service dependencies and publishes the result to
// the gRPC health server and the HTTP health endpoint.
type HealthChecker struct {
	server   *health.Server
	probes   map[string]Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	healthy  atomic.Bool
}

// NewHealthChecker creates a checker publishing to server. probes maps a
// dependency name to its Pinger; all must answer for the service to be
// healthy.
func NewHealthChecker(server *health.Server, probes map[string]Pinger, interval time.Duration, log *zap.Logger) *HealthChecker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthChecker{
		server:   server,
		probes:   probes,
		interval: interval,
		timeout:  interval / 2,
		log:      log,
	}
}

// Healthy reports the result of the last check.
func (h *HealthChecker) Healthy() bool {
	return h.healthy.Load()
}

// Check pings every dependency concurrently and publishes the outcome.
func (h *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		probe := h.probes[name]
		g.Go(func() error {
			if err := probe.Ping(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	err := g.Wait()

	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if was := h.healthy.Swap(err == nil); was != (err == nil) {
		if err != nil {
			h.log.Warn("service unhealthy", zap.Error(err))
		} else {
			h.log.Info("service healthy")
		}
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(UserServiceName, status)
	return err
}

// Run checks immediately and then on every interval until ctx is done. On
// exit every service is reported NOT_SERVING.
func (h *HealthChecker) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		_ = h.Check(ctx)

		select {
		case <-ctx.Done():
			h.healthy.Store(false)
			h.server.Shutdown()
			return nil
		case <-ticker.C:
		}
	}
}
