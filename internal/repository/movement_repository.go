package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// MovementRepository stores the audit trail of stage transitions.
type MovementRepository interface {
	Create(ctx context.Context, movement *domain.Movement) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Movement, error)
}

type movementRepository struct {
	pool *pgxpool.Pool
}

// NewMovementRepository builds repository.
func NewMovementRepository(pool *pgxpool.Pool) MovementRepository {
	return &movementRepository{pool: pool}
}

func (r *movementRepository) Create(ctx context.Context, movement *domain.Movement) error {
	const query = `
        INSERT INTO ticket_movements (ticket_id, from_stage, to_stage, from_status, to_status, actor, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	var fromStage, fromStatus *string
	if movement.FromStage != nil {
		s := string(*movement.FromStage)
		fromStage = &s
	}
	if movement.FromStatus != nil {
		s := string(*movement.FromStatus)
		fromStatus = &s
	}
	if err := conn(ctx, r.pool).QueryRow(ctx, query,
		movement.TicketID,
		fromStage,
		string(movement.ToStage),
		fromStatus,
		string(movement.ToStatus),
		movement.Actor,
		movement.CreatedAt,
	).Scan(&movement.ID); err != nil {
		return fmt.Errorf("create movement: %w", err)
	}
	return nil
}

func (r *movementRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Movement, error) {
	const query = `
        SELECT id, ticket_id, from_stage, to_stage, from_status, to_status, actor, created_at
        FROM ticket_movements WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var result []domain.Movement
	for rows.Next() {
		var (
			movement             domain.Movement
			fromStage, fromState *string
			toStage, toStatus    string
		)
		if err := rows.Scan(
			&movement.ID,
			&movement.TicketID,
			&fromStage,
			&toStage,
			&fromState,
			&toStatus,
			&movement.Actor,
			&movement.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		if fromStage != nil {
			s := domain.TicketStage(*fromStage)
			movement.FromStage = &s
		}
		if fromState != nil {
			s := domain.TicketStatus(*fromState)
			movement.FromStatus = &s
		}
		movement.ToStage = domain.TicketStage(toStage)
		movement.ToStatus = domain.TicketStatus(toStatus)
		result = append(result, movement)
	}
	return result, rows.Err()
}
