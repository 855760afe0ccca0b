package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type Config struct {
	Addr            string        // ":4000"
	ReadTimeout     time.Duration // 15s
	WriteTimeout    time.Duration // 30s
	IdleTimeout     time.Duration // 60s
	ShutdownTimeout time.Duration // 10s
}

type Server struct {
	cfg Config
	srv *http.Server
}

func New(cfg Config, handler http.Handler) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return &Server{
		cfg: cfg,
		srv: s,
	}
}

// Run запускает HTTP-сервер и блокирует до завершения ctx.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		// hijacked websocket-соединения Shutdown не ждёт
		_ = s.srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
