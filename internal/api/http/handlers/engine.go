package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/auth"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/service"
	apperrors "github.com/spec-kit/routing-engine/pkg/util/errorutil"
)

// TicketEngine is the routing surface the HTTP layer drives.
type TicketEngine interface {
	CreateTicket(ctx context.Context, input service.CreateTicketInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	GetTicketByTag(ctx context.Context, tag string) (*domain.Ticket, error)
	ListMovements(ctx context.Context, ticketID int64) ([]domain.Movement, error)
	PushToHub(ctx context.Context, ticketID int64, actor string) (*domain.Ticket, error)
	GrabForDepartment(ctx context.Context, deptCode, actor string) (*domain.Ticket, error)
	AssignToUser(ctx context.Context, ticketID int64, userID string) (*domain.Ticket, error)
	CompleteTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	CompleteWithFollowUp(ctx context.Context, ticketID int64, followUp service.FollowUpInput) (*domain.Ticket, *domain.Ticket, error)
}

// CycleRunner triggers logistics sweeps on demand.
type CycleRunner interface {
	RunSenderCycle(ctx context.Context) (*service.SenderCycleResult, error)
	RunGrabberCycle(ctx context.Context) (*service.GrabberCycleResult, error)
}

// DashboardReader builds dashboard projections.
type DashboardReader interface {
	Hub(ctx context.Context) (*service.HubView, error)
	Department(ctx context.Context, code string) (*service.DepartmentView, error)
	Monitor(ctx context.Context) (*service.MonitorView, error)
	Workspace(ctx context.Context, userID, deptCode string) (*service.WorkspaceView, error)
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("operator required")
	}
	return p, nil
}

// resolveTicket accepts a numeric id or a ticket tag.
func resolveTicket(c *fiber.Ctx, engine TicketEngine) (*domain.Ticket, error) {
	ref := c.Params("id")
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return engine.GetTicket(c.UserContext(), id)
	}
	return engine.GetTicketByTag(c.UserContext(), ref)
}
