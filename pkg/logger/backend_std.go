package logger

import (
	"log/slog"
)

// newStdHandler: текст в dev, JSON в stage/prod.
func newStdHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.level(),
		AddSource: cfg.AddSource,
	}
	if cfg.Env == EnvDev {
		return slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.NewJSONHandler(cfg.Output, opts)
}
