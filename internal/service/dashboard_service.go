package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/routing-engine/internal/capacity"
	"github.com/spec-kit/routing-engine/internal/clock"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/repository"
)

// Occupancy is a stage's load against its limit.
type Occupancy struct {
	Count      int     `json:"count"`
	Capacity   int     `json:"capacity"`
	Available  int     `json:"available"`
	Percentage float64 `json:"percentage"`
}

func newOccupancy(count, limit int) Occupancy {
	return Occupancy{
		Count:      count,
		Capacity:   limit,
		Available:  capacity.Available(count, limit),
		Percentage: capacity.Percentage(count, limit),
	}
}

// HubView is the hub dashboard: waiting tickets plus the ghost overlay.
type HubView struct {
	Occupancy   Occupancy
	Tickets     []domain.Ticket
	Ghosts      []domain.Ticket
	GhostWindow time.Duration
	GeneratedAt time.Time
}

// DepartmentView is one department's receiver hold.
type DepartmentView struct {
	Department domain.Department
	Occupancy  Occupancy
	Tickets    []domain.Ticket
	// Outgoing counts tickets the department still holds in sender hold.
	Outgoing    int
	GeneratedAt time.Time
}

// DepartmentOccupancy is one row of the monitor overview.
type DepartmentOccupancy struct {
	Code      string
	Name      string
	Occupancy Occupancy
}

// MonitorView gives every holding area's load at a glance.
type MonitorView struct {
	Hub         Occupancy
	SenderHold  int
	Departments []DepartmentOccupancy
	GeneratedAt time.Time
}

// WorkspaceView is one operator's task board.
type WorkspaceView struct {
	UserID     string
	Department domain.Department
	// Available is the department's receiver hold, oldest first.
	Available []domain.Ticket
	Assigned  []domain.Ticket
	// Completed holds the most recent completions, newest first.
	Completed   []domain.Ticket
	GeneratedAt time.Time
}

// RecentCompletedLimit caps the completed list of the workspace.
const RecentCompletedLimit = 20

// DashboardService builds read-only projections for the dashboards.
type DashboardService struct {
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
	config      repository.ConfigRepository
	ghosts      *GhostWindow
	clock       clock.Clock
}

// DashboardDependencies bundles collaborators.
type DashboardDependencies struct {
	TicketRepo     repository.TicketRepository
	DepartmentRepo repository.DepartmentRepository
	ConfigRepo     repository.ConfigRepository
	GhostWindow    *GhostWindow
	Clock          clock.Clock
}

// NewDashboardService constructs the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	ghosts := deps.GhostWindow
	if ghosts == nil {
		ghosts = NewGhostWindow(deps.TicketRepo, clk, DefaultGhostWindow)
	}
	return &DashboardService{
		tickets:     deps.TicketRepo,
		departments: deps.DepartmentRepo,
		config:      deps.ConfigRepo,
		ghosts:      ghosts,
		clock:       clk,
	}
}

// Hub returns hub tickets in FIFO order and the ghost overlay.
func (s *DashboardService) Hub(ctx context.Context) (*HubView, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Stage: domain.StageHub})
	if err != nil {
		return nil, err
	}
	ghosts, err := s.ghosts.Overlay(ctx)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return &HubView{
		Occupancy:   newOccupancy(len(tickets), cfg.HubCapacity),
		Tickets:     tickets,
		Ghosts:      ghosts,
		GhostWindow: s.ghosts.Window(),
		GeneratedAt: s.clock.Now(),
	}, nil
}

// Department returns the receiver hold of one department.
func (s *DashboardService) Department(ctx context.Context, code string) (*DepartmentView, error) {
	dept, err := s.departments.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, receiverFilter(dept.ID))
	if err != nil {
		return nil, err
	}
	outgoing, err := s.outgoing(ctx, dept.ID)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return &DepartmentView{
		Department:  *dept,
		Occupancy:   newOccupancy(len(tickets), cfg.ReceiverCapacity),
		Tickets:     tickets,
		Outgoing:    outgoing,
		GeneratedAt: s.clock.Now(),
	}, nil
}

// Monitor returns hub and per-department occupancy.
func (s *DashboardService) Monitor(ctx context.Context) (*MonitorView, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	hubCount, err := s.tickets.Count(ctx, repository.TicketFilter{Stage: domain.StageHub})
	if err != nil {
		return nil, err
	}
	senderCount, err := s.tickets.Count(ctx, repository.TicketFilter{Stage: domain.StageSenderHold})
	if err != nil {
		return nil, err
	}
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}

	view := &MonitorView{
		Hub:         newOccupancy(hubCount, cfg.HubCapacity),
		SenderHold:  senderCount,
		Departments: make([]DepartmentOccupancy, 0, len(departments)),
		GeneratedAt: s.clock.Now(),
	}
	for _, dept := range departments {
		count, err := s.tickets.Count(ctx, receiverFilter(dept.ID))
		if err != nil {
			return nil, err
		}
		view.Departments = append(view.Departments, DepartmentOccupancy{
			Code:      dept.Code,
			Name:      displayName(dept),
			Occupancy: newOccupancy(count, cfg.ReceiverCapacity),
		})
	}
	return view, nil
}

// Workspace returns the pickup pool of deptCode and userID's own tasks.
func (s *DashboardService) Workspace(ctx context.Context, userID, deptCode string) (*WorkspaceView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	dept, err := s.departments.GetByCode(ctx, strings.TrimSpace(deptCode))
	if err != nil {
		return nil, err
	}

	pool := receiverFilter(dept.ID)
	pool.Status = domain.TicketStatusReceived
	available, err := s.tickets.List(ctx, pool)
	if err != nil {
		return nil, err
	}
	assigned, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:  domain.TicketStatusAssigned,
		OwnerID: &userID,
		Order:   repository.OrderGrabbed,
	})
	if err != nil {
		return nil, err
	}
	completed, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:  domain.TicketStatusCompleted,
		OwnerID: &userID,
		Order:   repository.OrderCompletedDesc,
		Limit:   RecentCompletedLimit,
	})
	if err != nil {
		return nil, err
	}

	return &WorkspaceView{
		UserID:      userID,
		Department:  *dept,
		Available:   orEmpty(available),
		Assigned:    orEmpty(assigned),
		Completed:   orEmpty(completed),
		GeneratedAt: s.clock.Now(),
	}, nil
}

func orEmpty(tickets []domain.Ticket) []domain.Ticket {
	if tickets == nil {
		return []domain.Ticket{}
	}
	return tickets
}

func (s *DashboardService) outgoing(ctx context.Context, deptID int64) (int, error) {
	return s.tickets.Count(ctx, repository.TicketFilter{Stage: domain.StageSenderHold, SourceDeptID: &deptID})
}

func displayName(dept domain.Department) string {
	if dept.DisplayName != "" {
		return dept.DisplayName
	}
	return dept.Name
}
