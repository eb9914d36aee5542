package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/routing-engine/internal/api/http"
	"github.com/spec-kit/routing-engine/internal/api/http/handlers"
	"github.com/spec-kit/routing-engine/internal/app"
	"github.com/spec-kit/routing-engine/internal/auth"
	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.Build(ctx, cfg, logger, app.Options{Migrate: cfg.Postgres.RunMigrations, Events: true})
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}
	defer container.Close()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	server := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, logger, container.Metrics, cfg.App.RequestTimeout())

	checks := []handlers.DependencyCheck{{Name: "postgres", Ping: container.Postgres.Ping}}
	if container.Redis.Enabled() {
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: container.Redis.Ping})
	}

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, container.Metrics, checks...),
		Tickets:        handlers.NewTicketsHandler(container.Routing),
		Departments:    handlers.NewDepartmentsHandler(container.Routing),
		Logistics:      handlers.NewLogisticsHandler(container.Routing),
		Dashboard:      handlers.NewDashboardHandler(container.Dashboards),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
