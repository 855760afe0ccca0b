package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu  sync.RWMutex
	def *slog.Logger
)

// New собирает логгер по cfg, не трогая slog.Default.
func New(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "roomsync"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)

	// Выбор бекенда по умолчанию
	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	h = traceHandler{h.WithAttrs(commonAttr(cfg))}
	return slog.New(h)
}

// Init настраивает slog в зависимости от среды
func Init(cfg Config) *slog.Logger {
	l := New(cfg)
	slog.SetDefault(l)

	mu.Lock()
	def = l
	mu.Unlock()
	return l
}

func L() *slog.Logger {
	mu.RLock()
	l := def
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(Config{})
}

// Component — логгер с полем component.
func Component(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// Nop — логгер в никуда, для тестов и тихих CLI-режимов.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
