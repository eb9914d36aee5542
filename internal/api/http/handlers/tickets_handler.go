package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/dto"
	"github.com/spec-kit/routing-engine/internal/service"
	apperrors "github.com/spec-kit/routing-engine/pkg/util/errorutil"
)

// TicketsHandler manages the ticket lifecycle endpoints.
type TicketsHandler struct {
	engine TicketEngine
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(engine TicketEngine) *TicketsHandler {
	return &TicketsHandler{engine: engine}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("type and title required", nil)
	}

	source := strings.TrimSpace(req.SourceDept)
	if source == "" {
		source = p.Department
	}
	if !p.CanActFor(source) {
		return apperrors.NewForbidden("cannot create tickets for another department")
	}

	ticket, err := h.engine.CreateTicket(c.UserContext(), service.CreateTicketInput{
		TypeCode:   req.Type,
		SourceDept: source,
		TargetDept: req.TargetDept,
		Title:      req.Title,
		Content:    req.Content,
		Payload:    req.Payload,
		Actor:      p.UserID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /tickets/:id. Accepts an id or a tag.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	if _, err := principal(c); err != nil {
		return err
	}
	ticket, err := resolveTicket(c, h.engine)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListMovements GET /tickets/:id/movements.
func (h *TicketsHandler) ListMovements(c *fiber.Ctx) error {
	if _, err := principal(c); err != nil {
		return err
	}
	ticket, err := resolveTicket(c, h.engine)
	if err != nil {
		return err
	}
	movements, err := h.engine.ListMovements(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMovementList(movements)})
}

// PushTicket POST /tickets/:id/push.
func (h *TicketsHandler) PushTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ticket, err := resolveTicket(c, h.engine)
	if err != nil {
		return err
	}
	if !p.CanActFor(ticket.SourceDeptCode) {
		return apperrors.NewForbidden("ticket belongs to another department")
	}
	pushed, err := h.engine.PushToHub(c.UserContext(), ticket.ID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(pushed)})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = p.UserID
	}
	if userID != p.UserID && !p.IsAdmin() {
		return apperrors.NewForbidden("only admins may assign to others")
	}

	ticket, err := resolveTicket(c, h.engine)
	if err != nil {
		return err
	}
	if !p.CanActFor(ticket.TargetDeptCode) {
		return apperrors.NewForbidden("ticket is routed to another department")
	}
	assigned, err := h.engine.AssignToUser(c.UserContext(), ticket.ID, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(assigned)})
}

// CompleteTicket POST /tickets/:id/complete.
func (h *TicketsHandler) CompleteTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CompleteTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	ticket, err := resolveTicket(c, h.engine)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && (ticket.OwnerID == nil || *ticket.OwnerID != p.UserID) {
		return apperrors.NewForbidden("only the owner may complete the ticket")
	}

	if req.FollowUp == nil {
		done, err := h.engine.CompleteTicket(c.UserContext(), ticket.ID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.CompleteTicketResponse{Ticket: dto.NewTicketResponse(done)}})
	}

	done, child, err := h.engine.CompleteWithFollowUp(c.UserContext(), ticket.ID, service.FollowUpInput{
		TypeCode:   req.FollowUp.Type,
		TargetDept: req.FollowUp.TargetDept,
		Title:      req.FollowUp.Title,
		Content:    req.FollowUp.Content,
		Payload:    req.FollowUp.Payload,
	})
	if err != nil {
		return err
	}
	childResp := dto.NewTicketResponse(child)
	return c.JSON(fiber.Map{"data": dto.CompleteTicketResponse{
		Ticket:   dto.NewTicketResponse(done),
		FollowUp: &childResp,
	}})
}
