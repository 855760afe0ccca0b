package grpcx

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter публикует grpc.health.v1 по результату пинга хранилища.
type HealthReporter struct {
	hs     *health.Server
	pinger Pinger
	period time.Duration
	log    *slog.Logger
}

func NewHealthReporter(p Pinger, period time.Duration, log *slog.Logger) *HealthReporter {
	if period <= 0 {
		period = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HealthReporter{hs: health.NewServer(), pinger: p, period: period, log: log}
}

func (h *HealthReporter) Server() *health.Server { return h.hs }

// Check пингует хранилище и выставляет статус для "" и ServiceName.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", "err", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
	return st
}

// Run проверяет раз в period до отмены ctx, потом переводит всё в NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Check(ctx)

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
