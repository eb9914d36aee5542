package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// LogisticsHandler lets admins trigger a sweep outside the scheduler.
type LogisticsHandler struct {
	cycles CycleRunner
}

// NewLogisticsHandler constructs handler.
func NewLogisticsHandler(cycles CycleRunner) *LogisticsHandler {
	return &LogisticsHandler{cycles: cycles}
}

// SenderCycle POST /logistics/sender-cycle.
func (h *LogisticsHandler) SenderCycle(c *fiber.Ctx) error {
	result, err := h.cycles.RunSenderCycle(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// GrabberCycle POST /logistics/grabber-cycle.
func (h *LogisticsHandler) GrabberCycle(c *fiber.Ctx) error {
	result, err := h.cycles.RunGrabberCycle(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
