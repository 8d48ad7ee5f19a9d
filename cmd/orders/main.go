package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/markato-labs/markato/internal/app"
	"github.com/markato-labs/markato/internal/orders"
	"github.com/markato-labs/markato/internal/platform/db"
	"github.com/markato-labs/markato/jobs"
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

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer queue.Close()

	pricer := orders.NewCatalogPricer(cfg.CatalogURL, cfg.ProxyTimeout)
	service := orders.NewService(logger, orders.NewRepository(pool), pricer, queue)
	handler := orders.NewHandler(logger, service)

	router := chi.NewRouter()
	router.Use(app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg})...)
	handler.MountRoutes(router)

	if err := app.RunServer(ctx, logger, cfg, router); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
