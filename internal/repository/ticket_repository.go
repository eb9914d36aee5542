package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// TicketOrder selects the sort order of List.
type TicketOrder int

const (
	// OrderCreated is FIFO: oldest first, id as tie-break.
	OrderCreated TicketOrder = iota
	OrderGrabbed
	// OrderCompletedDesc puts the most recently completed ticket first.
	OrderCompletedDesc
)

// TicketFilter selects tickets in one holding area. Zero values are ignored.
type TicketFilter struct {
	Stage         domain.TicketStage
	Status        domain.TicketStatus
	SourceDeptID  *int64
	TargetDeptID  *int64
	OwnerID       *string
	RequireTarget bool
	Order         TicketOrder
	Limit         int
}

// TicketRepository is the only writer of ticket rows.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByTag(ctx context.Context, tag string) (*domain.Ticket, error)
	// LockByID reads the ticket FOR UPDATE, blocking while another transaction holds it.
	LockByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	// LockOldest locks up to filter.Limit matching tickets, oldest first with
	// id as tie-break.
	LockOldest(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListGrabbedSince returns tickets still in receiver hold grabbed at or
	// after since, newest grab first.
	ListGrabbedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSelect = `
        SELECT t.id, t.tag, t.title, t.content, t.payload, t.query_type_id, t.parent_ticket_id,
               t.status, t.stage, t.source_dept_id, t.target_dept_id, t.owner_id,
               t.created_at, t.pushed_at, t.grabbed_at, t.assigned_at, t.completed_at,
               s.code, COALESCE(d.code, '')
        FROM tickets t
        JOIN departments s ON s.id = t.source_dept_id
        LEFT JOIN departments d ON d.id = t.target_dept_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.Payload == nil {
		ticket.Payload = map[string]any{}
	}
	const query = `
        INSERT INTO tickets (tag, title, content, payload, query_type_id, parent_ticket_id, status, stage,
                             source_dept_id, target_dept_id, owner_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.Tag,
		ticket.Title,
		ticket.Content,
		ticket.Payload,
		ticket.QueryTypeID,
		ticket.ParentID,
		string(ticket.Status),
		string(ticket.Stage),
		ticket.SourceDeptID,
		ticket.TargetDeptID,
		ticket.OwnerID,
		ticket.CreatedAt,
	).Scan(&ticket.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate tag %s", domain.ErrInvalidInput, ticket.Tag)
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, stage=$2, target_dept_id=$3, owner_id=$4,
            pushed_at=$5, grabbed_at=$6, assigned_at=$7, completed_at=$8
        WHERE id=$9`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		string(ticket.Status),
		string(ticket.Stage),
		ticket.TargetDeptID,
		ticket.OwnerID,
		ticket.PushedAt,
		ticket.GrabbedAt,
		ticket.AssignedAt,
		ticket.CompletedAt,
		ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, ticketSelect+` WHERE t.id=$1`, id)
}

func (r *ticketRepository) GetByTag(ctx context.Context, tag string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, ticketSelect+` WHERE t.tag=$1`, tag)
}

func (r *ticketRepository) LockByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, ticketSelect+` WHERE t.id=$1 FOR UPDATE OF t`, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := filter.where()
	query := `SELECT COUNT(*) FROM tickets t WHERE ` + where
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

func (r *ticketRepository) LockOldest(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if filter.Limit <= 0 {
		return nil, nil
	}
	where, args := filter.where()
	args = append(args, filter.Limit)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at ASC, t.id ASC LIMIT $%d FOR UPDATE OF t`,
		ticketSelect, where, len(args))
	return r.list(ctx, query, args...)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := filter.where()
	query := ticketSelect + ` WHERE ` + where + ` ORDER BY ` + filter.orderBy()
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.list(ctx, query, args...)
}

func (r *ticketRepository) ListGrabbedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error) {
	query := ticketSelect + `
        WHERE t.stage=$1 AND t.grabbed_at >= $2
        ORDER BY t.grabbed_at DESC, t.id DESC`
	return r.list(ctx, query, string(domain.StageReceiverHold), since)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		status string
		stage  string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Tag,
		&ticket.Title,
		&ticket.Content,
		&ticket.Payload,
		&ticket.QueryTypeID,
		&ticket.ParentID,
		&status,
		&stage,
		&ticket.SourceDeptID,
		&ticket.TargetDeptID,
		&ticket.OwnerID,
		&ticket.CreatedAt,
		&ticket.PushedAt,
		&ticket.GrabbedAt,
		&ticket.AssignedAt,
		&ticket.CompletedAt,
		&ticket.SourceDeptCode,
		&ticket.TargetDeptCode,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	ticket.Stage = domain.TicketStage(stage)
	return &ticket, nil
}

func (f TicketFilter) where() (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if f.Stage != "" {
		args = append(args, string(f.Stage))
		clauses = append(clauses, fmt.Sprintf("t.stage=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if f.SourceDeptID != nil {
		args = append(args, *f.SourceDeptID)
		clauses = append(clauses, fmt.Sprintf("t.source_dept_id=$%d", len(args)))
	}
	if f.TargetDeptID != nil {
		args = append(args, *f.TargetDeptID)
		clauses = append(clauses, fmt.Sprintf("t.target_dept_id=$%d", len(args)))
	}
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		clauses = append(clauses, fmt.Sprintf("t.owner_id=$%d", len(args)))
	}
	if f.RequireTarget {
		clauses = append(clauses, "t.target_dept_id IS NOT NULL")
	}
	return strings.Join(clauses, " AND "), args
}

func (f TicketFilter) orderBy() string {
	switch f.Order {
	case OrderGrabbed:
		return "t.grabbed_at ASC NULLS LAST, t.id ASC"
	case OrderCompletedDesc:
		return "t.completed_at DESC NULLS LAST, t.id DESC"
	default:
		return "t.created_at ASC, t.id ASC"
	}
}
