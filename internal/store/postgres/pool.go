package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultApplicationName = "roomsync"
	pingTimeout            = 5 * time.Second
)

// Config — пул под хранилище комнат. Нули оставляют значения pgxpool.
type Config struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ApplicationName   string // пусто — DefaultApplicationName
}

// Open поднимает пул, проверяет связь и накатывает схему rooms.
// При любой ошибке пул закрыт.
func Open(ctx context.Context, cfg Config) (*RoomRepository, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	repo := NewRoomRepository(pool)
	if err := repo.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if pc.MinConns > pc.MaxConns {
		pc.MinConns = pc.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = map[string]string{}
	}
	name := cfg.ApplicationName
	if name == "" {
		name = DefaultApplicationName
	}
	pc.ConnConfig.RuntimeParams["application_name"] = name
	// created_at/updated_at читаются в UTC независимо от настроек сервера
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"
	return pc, nil
}

// Ping — health хранилища, его дёргают gRPC health и /health.
func (r *RoomRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", mapPgError(err))
	}
	return nil
}
