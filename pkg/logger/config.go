package logger

import (
	"io"
	"log/slog"
	"strings"
)

type Backend string

const (
	BackendStd Backend = "std" // Text в dev; JSON в stage/prod
	BackendZap Backend = "zap" // Slog-zap
)

type Config struct {
	// Метаданные для логгера
	Service    string
	Version    string
	InstanceID string

	// Управление выводом
	Level   slog.Level
	Env     Env
	Backend Backend // default: zap для stage/prod, std для dev
	Debug   bool
	Output  io.Writer // default: os.Stdout

	// Zap sampling
	SampleInitial    int
	SampleThereafter int

	// AddSource в dev
	AddSource bool
}

// level — Debug включает debug, если Level не задан явно.
func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}

// ParseLevel: debug|info|warn|error, остальное — info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
