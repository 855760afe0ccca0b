package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Unary logging + recovery + timeout guard (если у вызова нет deadline)
func UnaryServerInterceptor(log *slog.Logger, guard time.Duration) grpc.UnaryServerInterceptor {
	if guard <= 0 {
		guard = 10 * time.Second
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, guard)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc unary panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			level := slog.LevelInfo
			if status.Code(err) == codes.Internal {
				level = slog.LevelError
			}
			log.Log(ctx, level, "grpc unary",
				"method", info.FullMethod,
				"request_id", incomingRequestID(ctx),
				"code", status.Code(err).String(),
				"dur_ms", time.Since(start).Milliseconds(),
				"err", errString(err))
		}()

		return handler(ctx, req)
	}
}

// Stream — health Watch и прочие стримы.
func StreamServerInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc stream panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.Info("grpc stream",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"err", errString(err))
		}()

		return handler(srv, ss)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// incomingRequestID — x-request-id, который прислал клиент.
func incomingRequestID(ctx context.Context) string {
	if v := metadata.ValueFromIncomingContext(ctx, "x-request-id"); len(v) > 0 {
		return v[0]
	}
	return ""
}
