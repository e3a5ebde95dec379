package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dwikikusuma/pos-checkout/pkg/config"
	"github.com/dwikikusuma/pos-checkout/pkg/database"
	"github.com/dwikikusuma/pos-checkout/pkg/logger"
	"github.com/dwikikusuma/pos-checkout/pkg/shutdown"
)

const backendCheckInterval = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "posd", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Error("db open failed", slog.Any("err", err), slog.String("driver", cfg.DB.Driver))
		os.Exit(1)
	}
	defer db.Close()

	a, err := newApp(ctx, cfg, db, log)
	if err != nil {
		log.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer a.close()

	if cfg.Shop.ID == "" {
		log.Warn("no shop configured, checkouts will end in NO_SHOP")
	}

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("listen failed", slog.Any("err", err), slog.String("addr", grpcAddr))
		os.Exit(1)
	}

	hs := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              httpAddr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("grpc starting", slog.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve error", slog.Any("err", err))
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", httpAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchBackend(ctx, hs, a.backend, backendCheckInterval, log)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		every(ctx, cfg.Checkout.RetryInterval, func(ctx context.Context) {
			if a.retry.Len() == 0 {
				return
			}
			res := a.retry.ProcessPendingCheckouts(ctx)
			log.Info("retry sweep",
				slog.Int("attempted", res.Attempted),
				slog.Int("succeeded", res.Succeeded),
				slog.Bool("skipped", res.Skipped),
			)
		})
	}()

	<-ctx.Done()
	log.Info("shutdown requested")
	hs.Shutdown()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := server.Shutdown(stopCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopCtx.Done():
		log.Warn("graceful stop timeout, forcing stop")
		grpcServer.Stop()
	case <-stopped:
	}

	wg.Wait()
	log.Info("bye")
}
