// Package bootstrap wires the storage runtime shared by the server and the
// command line tools.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/Jayriel04/MCCAsset2.0/internal/cache"
	"github.com/Jayriel04/MCCAsset2.0/internal/config"
	"github.com/Jayriel04/MCCAsset2.0/internal/database"
	"github.com/Jayriel04/MCCAsset2.0/internal/observability"
	"github.com/Jayriel04/MCCAsset2.0/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedBuiltIns bool
}

// InitRuntime connects to the database and Redis and optionally seeds the
// built-in demo assets. Redis is optional: the returned client is nil when
// it is not configured or unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := seedBuiltIns(cfg, db, opts); err != nil {
		return nil, nil, err
	}

	return db, connectRedis(cfg), nil
}

func seedBuiltIns(cfg *config.Config, db *gorm.DB, opts Options) error {
	if !opts.SeedBuiltIns || cfg.IsProduction() {
		return nil
	}
	n, err := seed.BuiltIns(db)
	if err != nil {
		return fmt.Errorf("failed to seed built-in assets: %w", err)
	}
	if n > 0 {
		observability.GlobalLogger.Info("seeded built-in assets", "count", n)
	}
	return nil
}

func connectRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	rdb, err := cache.NewClient(context.Background(), cfg.RedisURL)
	if err != nil {
		observability.GlobalLogger.Warn("redis unavailable, continuing without it", "error", err.Error())
		return nil
	}
	return rdb
}
