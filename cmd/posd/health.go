package main

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkoutService is the health service name reported for the checkout
// backend connection.
const checkoutService = "pos.checkout"

type pinger interface {
	Ping(ctx context.Context) error
}

// watchBackend flips the checkout service between SERVING and NOT_SERVING
// depending on whether the backend answers. It returns when ctx is done.
func watchBackend(ctx context.Context, hs *health.Server, backend pinger, interval time.Duration, log *slog.Logger) {
	check := func(ctx context.Context) {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err := backend.Ping(pctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			log.Debug("backend ping failed", slog.Any("err", err))
		}
		hs.SetServingStatus(checkoutService, st)
	}

	check(ctx)
	every(ctx, interval, check)
}

// every runs fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
