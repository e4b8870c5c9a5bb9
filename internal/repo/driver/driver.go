// Package driver opens the repo.Store selected by STORE_DRIVER.
package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/config"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/file"
	"github.com/hamed0406/uptimeworker/internal/repo/memory"
	"github.com/hamed0406/uptimeworker/internal/repo/postgres"
	redisstore "github.com/hamed0406/uptimeworker/internal/repo/redis"
	"github.com/hamed0406/uptimeworker/internal/repo/sqlite"
)

// Open returns the configured store and a func releasing its resources.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("store_memory", zap.String("note", "checks are lost on restart"))
		return memory.New(), noop, nil

	case config.DriverFile:
		s, err := file.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("file_store_ready", zap.String("dir", cfg.DataDir))
		return s, noop, nil

	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverRedis:
		client, err := redisstore.Connect(ctx, redisstore.ConnectOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(client), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
