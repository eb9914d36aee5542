package dto

import (
	"time"

	"github.com/spec-kit/routing-engine/internal/service"
)

// HubDashboardResponse is the hub board with its ghost overlay.
type HubDashboardResponse struct {
	Occupancy          service.Occupancy `json:"occupancy"`
	Tickets            []TicketResponse  `json:"tickets"`
	Ghosts             []TicketResponse  `json:"ghosts"`
	GhostWindowSeconds int64             `json:"ghost_window_seconds"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// DepartmentDashboardResponse is one department's receiver board.
type DepartmentDashboardResponse struct {
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Occupancy   service.Occupancy `json:"occupancy"`
	Tickets     []TicketResponse  `json:"tickets"`
	Outgoing    int               `json:"outgoing"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// DepartmentOccupancyResponse is one monitor row.
type DepartmentOccupancyResponse struct {
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	Occupancy service.Occupancy `json:"occupancy"`
}

// MonitorResponse is the all-areas overview.
type MonitorResponse struct {
	Hub         service.Occupancy             `json:"hub"`
	SenderHold  int                           `json:"sender_hold"`
	Departments []DepartmentOccupancyResponse `json:"departments"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// WorkspaceResponse is an operator's task board.
type WorkspaceResponse struct {
	UserID      string           `json:"user_id"`
	Department  string           `json:"department"`
	Available   []TicketResponse `json:"available"`
	Assigned    []TicketResponse `json:"assigned"`
	Completed   []TicketResponse `json:"completed"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// NewHubDashboardResponse maps the hub view.
func NewHubDashboardResponse(v *service.HubView) HubDashboardResponse {
	return HubDashboardResponse{
		Occupancy:          v.Occupancy,
		Tickets:            NewTicketList(v.Tickets),
		Ghosts:             NewTicketList(v.Ghosts),
		GhostWindowSeconds: int64(v.GhostWindow / time.Second),
		GeneratedAt:        v.GeneratedAt,
	}
}

// NewDepartmentDashboardResponse maps a department view.
func NewDepartmentDashboardResponse(v *service.DepartmentView) DepartmentDashboardResponse {
	name := v.Department.DisplayName
	if name == "" {
		name = v.Department.Name
	}
	return DepartmentDashboardResponse{
		Code:        v.Department.Code,
		Name:        name,
		Occupancy:   v.Occupancy,
		Tickets:     NewTicketList(v.Tickets),
		Outgoing:    v.Outgoing,
		GeneratedAt: v.GeneratedAt,
	}
}

// NewMonitorResponse maps the monitor view.
func NewMonitorResponse(v *service.MonitorView) MonitorResponse {
	rows := make([]DepartmentOccupancyResponse, 0, len(v.Departments))
	for _, d := range v.Departments {
		rows = append(rows, DepartmentOccupancyResponse{Code: d.Code, Name: d.Name, Occupancy: d.Occupancy})
	}
	return MonitorResponse{
		Hub:         v.Hub,
		SenderHold:  v.SenderHold,
		Departments: rows,
		GeneratedAt: v.GeneratedAt,
	}
}

// NewWorkspaceResponse maps a workspace view.
func NewWorkspaceResponse(v *service.WorkspaceView) WorkspaceResponse {
	return WorkspaceResponse{
		UserID:      v.UserID,
		Department:  v.Department.Code,
		Available:   NewTicketList(v.Available),
		Assigned:    NewTicketList(v.Assigned),
		Completed:   NewTicketList(v.Completed),
		GeneratedAt: v.GeneratedAt,
	}
}
