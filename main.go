package main

import (
	"context"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"projectmeasure/collections"
	"projectmeasure/commands"
	"projectmeasure/config"
	"projectmeasure/handlers"
	"projectmeasure/measurements"
)

func main() {
	cfg := config.Load()
	logger := config.ConfigureLogger(cfg)

	app := pocketbase.New()
	svc := measurements.New(app, newLocker(cfg), logger, cfg)

	collections.RegisterHooks(app)

	// Create collections, seed data and backfill on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		collections.Setup(app)
		if cfg.SeedDemoData {
			if err := collections.Seed(app); err != nil {
				logger.WithError(err).Warn("seed data failed")
			}
		}
		if err := collections.MigratePriceFields(app); err != nil {
			logger.WithError(err).Warn("price field migration failed")
		}
		err := collections.MigrateMissingSessionStatus(app, func(sessionID string) error {
			_, err := svc.RecomputeSessionStatus(context.Background(), sessionID)
			return err
		})
		if err != nil {
			logger.WithError(err).Warn("session status migration failed")
		}
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		handlers.RegisterRoutes(se, svc)
		return se.Next()
	})

	commands.Register(app.RootCmd, app, svc)

	if err := app.Start(); err != nil {
		logger.Fatal(err)
	}
}

// newLocker picks the lock backend. Redis is used only when it answers a
// ping; otherwise the process falls back to in-memory locks.
func newLocker(cfg config.Config) measurements.Locker {
	logger := config.GetLogger()
	if cfg.LockBackend != config.LockBackendRedis {
		return measurements.NewMemoryLocker()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddress).Warn("redis unavailable, using in-memory locks")
		rdb.Close()
		return measurements.NewMemoryLocker()
	}

	logger.WithField("addr", cfg.RedisAddress).Info("using redis locks")
	return measurements.NewRedisLocker(rdb, cfg.LockTTL)
}
