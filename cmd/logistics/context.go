package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/app"
	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/observability"
)

type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
	loggerErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = observability.NewLogger(cfg.Logger)
	})
	return c.logger, c.loggerErr
}

// build wires the engine against the configured stores.
func (c *commandContext) build(ctx context.Context, opts app.Options) (*app.Container, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, logger, opts)
}
