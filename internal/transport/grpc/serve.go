package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Config struct {
	Addr         string        // ":9090"
	CallTimeout  time.Duration // guard для вызовов без deadline
	HealthPeriod time.Duration
}

// NewGRPCServer — сервер с интерсепторами, сервисом комнат и health.
func NewGRPCServer(cfg Config, svc RoomSvc, hr *HealthReporter, log *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(log, cfg.CallTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(log)),
	)
	Register(srv, NewServer(svc))
	healthpb.RegisterHealthServer(srv, hr.Server())
	return srv
}

// Serve слушает cfg.Addr до отмены ctx, затем GracefulStop.
func Serve(ctx context.Context, addr string, srv *grpc.Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, lis, srv)
}

func ServeListener(ctx context.Context, lis net.Listener, srv *grpc.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			srv.Stop()
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
