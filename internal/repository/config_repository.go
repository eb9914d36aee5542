package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// ConfigRepository exposes the singleton capacity row.
type ConfigRepository interface {
	Get(ctx context.Context) (*domain.SystemConfig, error)
	// Lock reads the row FOR UPDATE; holding it serializes hub admissions.
	// A missing row is recreated with default limits before it is locked.
	Lock(ctx context.Context) (*domain.SystemConfig, error)
	Update(ctx context.Context, cfg *domain.SystemConfig) error
}

type configRepository struct {
	pool *pgxpool.Pool
}

// NewConfigRepository builds the repository.
func NewConfigRepository(pool *pgxpool.Pool) ConfigRepository {
	return &configRepository{pool: pool}
}

func (r *configRepository) Get(ctx context.Context) (*domain.SystemConfig, error) {
	const query = `SELECT hub_capacity, receiver_capacity, updated_at FROM system_config WHERE id=1`
	return r.fetch(ctx, query)
}

func (r *configRepository) Lock(ctx context.Context) (*domain.SystemConfig, error) {
	const ensure = `
        INSERT INTO system_config (id, hub_capacity, receiver_capacity)
        VALUES (1, $1, $2)
        ON CONFLICT (id) DO NOTHING`
	if _, err := conn(ctx, r.pool).Exec(ctx, ensure, domain.DefaultHubCapacity, domain.DefaultReceiverCapacity); err != nil {
		return nil, fmt.Errorf("ensure system config: %w", err)
	}
	const query = `SELECT hub_capacity, receiver_capacity, updated_at FROM system_config WHERE id=1 FOR UPDATE`
	var cfg domain.SystemConfig
	err := conn(ctx, r.pool).QueryRow(ctx, query).Scan(&cfg.HubCapacity, &cfg.ReceiverCapacity, &cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock system config: %w", err)
	}
	return &cfg, nil
}

func (r *configRepository) fetch(ctx context.Context, query string) (*domain.SystemConfig, error) {
	var cfg domain.SystemConfig
	err := conn(ctx, r.pool).QueryRow(ctx, query).Scan(&cfg.HubCapacity, &cfg.ReceiverCapacity, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.SystemConfig{
			HubCapacity:      domain.DefaultHubCapacity,
			ReceiverCapacity: domain.DefaultReceiverCapacity,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get system config: %w", err)
	}
	return &cfg, nil
}

func (r *configRepository) Update(ctx context.Context, cfg *domain.SystemConfig) error {
	if cfg.HubCapacity <= 0 || cfg.ReceiverCapacity <= 0 {
		return fmt.Errorf("%w: capacities must be positive", domain.ErrInvalidInput)
	}
	const query = `
        INSERT INTO system_config (id, hub_capacity, receiver_capacity, updated_at)
        VALUES (1, $1, $2, NOW())
        ON CONFLICT (id) DO UPDATE
            SET hub_capacity=EXCLUDED.hub_capacity, receiver_capacity=EXCLUDED.receiver_capacity, updated_at=NOW()
        RETURNING updated_at`
	if err := conn(ctx, r.pool).QueryRow(ctx, query, cfg.HubCapacity, cfg.ReceiverCapacity).Scan(&cfg.UpdatedAt); err != nil {
		return fmt.Errorf("update system config: %w", err)
	}
	return nil
}
