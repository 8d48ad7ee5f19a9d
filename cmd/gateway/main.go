package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markato-labs/markato/internal/app"
	"github.com/markato-labs/markato/internal/gateway"
	"github.com/markato-labs/markato/internal/token"
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

	verifier := token.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	routes := gateway.NewTable(cfg)
	proxy := gateway.NewProxy(logger, cfg.ProxyTimeout)
	handler := gateway.NewHandler(logger, verifier, routes, proxy)

	router := chi.NewRouter()
	router.Use(app.MiddlewareStack(app.MiddlewareConfig{
		Logger:          logger,
		Config:          cfg,
		RateLimit:       100,
		RateLimitWindow: time.Minute,
	})...)
	handler.MountRoutes(router)

	if err := app.RunServer(ctx, logger, cfg, router); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
