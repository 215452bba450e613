package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/nzaharov305-rgb/telegram-bot/internal/app"
	"github.com/nzaharov305-rgb/telegram-bot/internal/cache"
	"github.com/nzaharov305-rgb/telegram-bot/internal/config"
	"github.com/nzaharov305-rgb/telegram-bot/internal/repository"
	"github.com/nzaharov305-rgb/telegram-bot/pkg/logger"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	ctx := context.Background()

	pool, err := repository.Connect(ctx, cfg.DBConnString)
	if err != nil {
		lg.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := repository.Migrate(ctx, pool); err != nil {
		lg.Fatal("migrate", zap.Error(err))
	}

	var kv cache.Store = cache.NewMemory()
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			lg.Fatal("connect redis", zap.Error(err))
		}
		defer r.Close()
		kv = r
	}

	store := app.Storage{
		Directory: repository.NewPostgresSubscribers(pool),
		Ledger:    repository.NewPostgresLedger(pool),
		Stats:     repository.NewPostgresStats(pool),
		Complexes: repository.NewPostgresComplexes(pool),
	}

	a := app.New(cfg, lg, store, kv)
	if err := a.Run(ctx); err != nil {
		lg.Fatal("run", zap.Error(err))
	}
}
