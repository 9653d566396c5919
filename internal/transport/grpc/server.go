// Package grpc exposes the standard gRPC health service so orchestrators can
// probe the booking server alongside the HTTP API.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health entry reported next to the overall ("") status.
const ServiceName = "booking.v1.Booking"

type pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds a gRPC server with tracing, Prometheus call metrics, a
// default per-call deadline and the health service registered.
func NewServer(timeout time.Duration, hs *health.Server) *gogrpc.Server {
	metrics := grpcprometheus.NewServerMetrics()

	s := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.ChainUnaryInterceptor(
			metrics.UnaryServerInterceptor(),
			DefaultRequestTimeoutInterceptor(timeout),
		),
		gogrpc.ChainStreamInterceptor(metrics.StreamServerInterceptor()),
	)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	metrics.InitializeMetrics(s)
	registerMetrics(metrics)
	return s
}

func registerMetrics(c prometheus.Collector) {
	var already prometheus.AlreadyRegisteredError
	if err := prometheus.Register(c); err != nil && !errors.As(err, &already) {
		panic(err)
	}
}

func DefaultRequestTimeoutInterceptor(timeout time.Duration) gogrpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// HealthReporter keeps the health server in sync with the database.
type HealthReporter struct {
	hs       *health.Server
	db       pinger
	interval time.Duration
	log      *slog.Logger
}

func NewHealthReporter(hs *health.Server, db pinger, interval time.Duration, log *slog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HealthReporter{
		hs:       hs,
		db:       db,
		interval: interval,
		log:      log.With(slog.String("component", "grpc.health")),
	}
}

// Run probes until ctx is done, then marks every service NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context) {
	h.probe(ctx)

	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			h.probe(ctx)
		}
	}
}

func (h *HealthReporter) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.db.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.log.Warn("database probe failed", slog.Any("err", err))
	}
	h.hs.SetServingStatus("", status)
	h.hs.SetServingStatus(ServiceName, status)
}

// Shutdown stops s gracefully, forcing it after timeout.
func Shutdown(log *slog.Logger, s *gogrpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
