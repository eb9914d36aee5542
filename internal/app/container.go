// Package app assembles the routing engine from configuration. Both the API
// server and the logistics runner build on it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/clock"
	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/observability"
	"github.com/spec-kit/routing-engine/internal/persistence"
	"github.com/spec-kit/routing-engine/internal/repository"
	"github.com/spec-kit/routing-engine/internal/sequence"
	"github.com/spec-kit/routing-engine/internal/service"
	"github.com/spec-kit/routing-engine/internal/worker"
)

// Container holds the wired services and the resources they own.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Dispatcher events.Dispatcher
	Routing    *service.RoutingService
	Dashboards *service.DashboardService

	Transactor  repository.Transactor
	Departments repository.DepartmentRepository
	Settings    repository.ConfigRepository
	QueryTypes  repository.QueryTypeRepository
}

// Options tweaks what Build sets up.
type Options struct {
	// Migrate applies pending migrations before wiring repositories.
	Migrate bool
	// Events enables the notification and Redis subscribers.
	Events bool
}

// Build connects to the stores and wires every service.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if opts.Migrate {
		if err := persistence.RunMigrations(ctx, pg.Pool(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	loc, err := cfg.Routing.Location()
	if err != nil {
		pg.Close()
		return nil, err
	}

	pool := pg.Pool()
	clk := clock.NewSystem()
	c := &Container{
		Config:      cfg,
		Logger:      logger,
		Metrics:     observability.NewMetrics(),
		Postgres:    pg,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Transactor:  repository.NewTransactor(pool),
		Departments: repository.NewDepartmentRepository(pool),
		Settings:    repository.NewConfigRepository(pool),
		QueryTypes:  repository.NewQueryTypeRepository(pool),
	}
	tickets := repository.NewTicketRepository(pool)

	c.Routing = service.NewRoutingService(service.RoutingDependencies{
		Transactor:     c.Transactor,
		TicketRepo:     tickets,
		DepartmentRepo: c.Departments,
		ConfigRepo:     c.Settings,
		QueryTypeRepo:  c.QueryTypes,
		MovementRepo:   repository.NewMovementRepository(pool),
		Sequences:      sequence.NewGenerator(repository.NewSequenceRepository(pool), loc),
		Dispatcher:     c.Dispatcher,
		Clock:          clk,
		Logger:         logger,
	})
	c.Dashboards = service.NewDashboardService(service.DashboardDependencies{
		TicketRepo:     tickets,
		DepartmentRepo: c.Departments,
		ConfigRepo:     c.Settings,
		GhostWindow:    service.NewGhostWindow(tickets, clk, cfg.Routing.GhostWindow()),
		Clock:          clk,
	})

	if opts.Events {
		c.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		var publisher *events.RedisPublisher
		if c.Redis.Enabled() {
			publisher = events.NewRedisPublisher(c.Redis.Client(), cfg.Redis.EventsChannel, logger)
		}
		worker.StartEventWorkers(c.Dispatcher, service.NewNotificationService(c.Dispatcher, logger, cfg.Notification), publisher)
	}
	return c, nil
}

// Close releases the stores.
func (c *Container) Close() {
	if c.Redis != nil {
		c.Redis.Close()
	}
	c.Postgres.Close()
}
