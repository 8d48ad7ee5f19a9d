package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/markato-labs/markato/internal/app"
	"github.com/markato-labs/markato/internal/catalog"
	"github.com/markato-labs/markato/internal/platform/cache"
	"github.com/markato-labs/markato/internal/platform/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	listCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	service := catalog.NewService(catalog.NewRepository(pool), listCache)
	handler := catalog.NewHandler(logger, service)

	router := chi.NewRouter()
	router.Use(app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg})...)
	handler.MountRoutes(router)

	if err := app.RunServer(ctx, logger, cfg, router); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
