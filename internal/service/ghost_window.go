package service

import (
	"context"
	"time"

	"github.com/spec-kit/routing-engine/internal/clock"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/repository"
)

// DefaultGhostWindow is how long a grabbed ticket keeps showing in the hub view.
const DefaultGhostWindow = 5 * time.Minute

// GhostWindow computes the recently-grabbed overlay for the hub view. It is a
// plain time-bounded read and takes no locks.
type GhostWindow struct {
	tickets repository.TicketRepository
	clock   clock.Clock
	window  time.Duration
}

// NewGhostWindow builds the view. A non-positive window falls back to the default.
func NewGhostWindow(tickets repository.TicketRepository, clk clock.Clock, window time.Duration) *GhostWindow {
	if window <= 0 {
		window = DefaultGhostWindow
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &GhostWindow{tickets: tickets, clock: clk, window: window}
}

// Window returns the configured trailing interval.
func (g *GhostWindow) Window() time.Duration {
	return g.window
}

// Overlay returns receiver-hold tickets grabbed within the window, newest first.
func (g *GhostWindow) Overlay(ctx context.Context) ([]domain.Ticket, error) {
	since := g.clock.Now().Add(-g.window)
	ghosts, err := g.tickets.ListGrabbedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	if ghosts == nil {
		ghosts = []domain.Ticket{}
	}
	return ghosts, nil
}
