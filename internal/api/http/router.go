package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/http/handlers"
	"github.com/spec-kit/routing-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Departments    *handlers.DepartmentsHandler
	Logistics      *handlers.LogisticsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	operators := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleOperator, auth.RoleAdmin))

	tickets := operators.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/movements", cfg.Tickets.ListMovements)
	tickets.Post("/:id/push", cfg.Tickets.PushTicket)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/complete", cfg.Tickets.CompleteTicket)

	operators.Post("/departments/:code/grab", cfg.Departments.Grab)

	dashboard := operators.Group("/dashboard")
	dashboard.Get("/hub", cfg.Dashboard.Hub)
	dashboard.Get("/departments/:code", cfg.Dashboard.Department)
	dashboard.Get("/monitor", cfg.Dashboard.Monitor)
	dashboard.Get("/me", cfg.Dashboard.Workspace)

	admin := app.Group("/logistics", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleAdmin))
	admin.Post("/sender-cycle", cfg.Logistics.SenderCycle)
	admin.Post("/grabber-cycle", cfg.Logistics.GrabberCycle)
}
