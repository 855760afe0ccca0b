package main

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/roomsync/config"
	"github.com/cwrk-planet/roomsync/internal/store"
	"github.com/cwrk-planet/roomsync/internal/store/memory"
	"github.com/cwrk-planet/roomsync/internal/store/postgres"
	redisstore "github.com/cwrk-planet/roomsync/internal/store/redis"
	"github.com/cwrk-planet/roomsync/internal/store/sqlite"
)

// openStore выбирает бэкенд по store.driver.
func openStore(ctx context.Context, cfg config.Store) (store.RoomStore, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.New(), nil

	case config.DriverPostgres:
		repo, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return repo, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil

	case config.DriverRedis:
		rcfg := redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		}
		s := redisstore.New(redisstore.NewClient(rcfg), rcfg)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
