package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/dto"
	apperrors "github.com/spec-kit/routing-engine/pkg/util/errorutil"
)

// DashboardHandler serves read-only dashboard projections.
type DashboardHandler struct {
	dashboards DashboardReader
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboards DashboardReader) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Hub GET /dashboard/hub.
func (h *DashboardHandler) Hub(c *fiber.Ctx) error {
	view, err := h.dashboards.Hub(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHubDashboardResponse(view)})
}

// Department GET /dashboard/departments/:code.
func (h *DashboardHandler) Department(c *fiber.Ctx) error {
	view, err := h.dashboards.Department(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentDashboardResponse(view)})
}

// Monitor GET /dashboard/monitor.
func (h *DashboardHandler) Monitor(c *fiber.Ctx) error {
	view, err := h.dashboards.Monitor(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMonitorResponse(view)})
}

// Workspace GET /dashboard/me shows the caller's pickup pool and own tasks.
// Admins carry no department and pick one with ?dept=.
func (h *DashboardHandler) Workspace(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	dept := c.Query("dept", p.Department)
	if dept == "" {
		return apperrors.NewValidationError("dept is required", map[string]any{"field": "dept"})
	}
	if !p.CanActFor(dept) {
		return apperrors.NewForbidden("cannot view another department's workspace")
	}
	view, err := h.dashboards.Workspace(c.UserContext(), p.UserID, dept)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkspaceResponse(view)})
}
