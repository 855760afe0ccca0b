package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/roomsync/config"
	httpserver "github.com/cwrk-planet/roomsync/internal/server/http"
	"github.com/cwrk-planet/roomsync/internal/service"
	grpcx "github.com/cwrk-planet/roomsync/internal/transport/grpc"
	httpx "github.com/cwrk-planet/roomsync/internal/transport/http"
	"github.com/cwrk-planet/roomsync/internal/transport/ws"
	"github.com/cwrk-planet/roomsync/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting roomsync",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("roomsync: %v", err)
	}
	slog.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- store ---
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// --- services ---
	roomSvc := service.NewRoomService(st)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, roomSvc, ws.Config{
		PingPeriod:        cfg.WS.PingPeriod,
		WriteWait:         cfg.WS.WriteWait,
		MaxMessageSize:    cfg.WS.MaxMessageSize,
		SendBuffer:        cfg.WS.SendBuffer,
		MessagesPerSecond: cfg.WS.MessagesPerSecond,
		Burst:             cfg.WS.Burst,
		MaxViolations:     cfg.WS.MaxViolations,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
	}, logger.Component("ws"))

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(roomSvc),
		WS:             wsServer.HandleWS,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := httpserver.New(httpserver.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		return httpSrv.Run(ctx)
	})

	// --- gRPC ---
	if cfg.GRPC.Addr != "" {
		grpcLog := logger.Component("grpc")
		health := grpcx.NewHealthReporter(st, cfg.GRPC.HealthPeriod, grpcLog)
		grpcServer := grpcx.NewGRPCServer(grpcx.Config{
			Addr:         cfg.GRPC.Addr,
			CallTimeout:  cfg.GRPC.CallTimeout,
			HealthPeriod: cfg.GRPC.HealthPeriod,
		}, roomSvc, health, grpcLog)

		g.Go(func() error {
			health.Run(ctx)
			return nil
		})
		g.Go(func() error {
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			return grpcx.Serve(ctx, cfg.GRPC.Addr, grpcServer)
		})
	}

	return g.Wait()
}
