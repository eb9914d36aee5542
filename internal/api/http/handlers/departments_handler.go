package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/dto"
	apperrors "github.com/spec-kit/routing-engine/pkg/util/errorutil"
)

// DepartmentsHandler serves receiver-side endpoints.
type DepartmentsHandler struct {
	engine TicketEngine
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(engine TicketEngine) *DepartmentsHandler {
	return &DepartmentsHandler{engine: engine}
}

// Grab POST /departments/:code/grab pulls the oldest hub ticket routed to the department.
func (h *DepartmentsHandler) Grab(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	code := c.Params("code")
	if !p.CanActFor(code) {
		return apperrors.NewForbidden("cannot grab for another department")
	}
	ticket, err := h.engine.GrabForDepartment(c.UserContext(), code, p.UserID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.JSON(fiber.Map{"data": nil, "message": "No pending tickets"})
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
