package dto

import (
	"time"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// CreateTicketRequest payload. SourceDept defaults to the caller's department.
type CreateTicketRequest struct {
	Type       string         `json:"type"`
	SourceDept string         `json:"source_dept"`
	TargetDept string         `json:"target_dept"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Payload    map[string]any `json:"payload"`
}

// AssignTicketRequest payload. UserID defaults to the caller.
type AssignTicketRequest struct {
	UserID string `json:"user_id"`
}

// CompleteTicketRequest payload.
type CompleteTicketRequest struct {
	FollowUp *FollowUpRequest `json:"follow_up,omitempty"`
}

// FollowUpRequest describes a child ticket raised on completion.
type FollowUpRequest struct {
	Type       string         `json:"type"`
	TargetDept string         `json:"target_dept"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Payload    map[string]any `json:"payload"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID          int64               `json:"id"`
	Tag         string              `json:"tag"`
	Title       string              `json:"title"`
	Content     string              `json:"content,omitempty"`
	Payload     map[string]any      `json:"payload,omitempty"`
	ParentID    *int64              `json:"parent_id,omitempty"`
	Stage       domain.TicketStage  `json:"stage"`
	Status      domain.TicketStatus `json:"status"`
	SourceDept  string              `json:"source_dept"`
	TargetDept  string              `json:"target_dept,omitempty"`
	OwnerID     *string             `json:"owner_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	PushedAt    *time.Time          `json:"pushed_at,omitempty"`
	GrabbedAt   *time.Time          `json:"grabbed_at,omitempty"`
	AssignedAt  *time.Time          `json:"assigned_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// CompleteTicketResponse carries the completed ticket and its optional child.
type CompleteTicketResponse struct {
	Ticket   TicketResponse  `json:"ticket"`
	FollowUp *TicketResponse `json:"follow_up,omitempty"`
}

// MovementResponse is one audit entry.
type MovementResponse struct {
	FromStage  *domain.TicketStage  `json:"from_stage"`
	ToStage    domain.TicketStage   `json:"to_stage"`
	FromStatus *domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus  `json:"to_status"`
	Actor      string               `json:"actor"`
	CreatedAt  time.Time            `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Tag:         t.Tag,
		Title:       t.Title,
		Content:     t.Content,
		Payload:     t.Payload,
		ParentID:    t.ParentID,
		Stage:       t.Stage,
		Status:      t.Status,
		SourceDept:  t.SourceDeptCode,
		TargetDept:  t.TargetDeptCode,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
		PushedAt:    t.PushedAt,
		GrabbedAt:   t.GrabbedAt,
		AssignedAt:  t.AssignedAt,
		CompletedAt: t.CompletedAt,
	}
}

// NewTicketList maps a slice of tickets; never returns nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewMovementList maps audit entries.
func NewMovementList(movements []domain.Movement) []MovementResponse {
	items := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		items = append(items, MovementResponse{
			FromStage:  m.FromStage,
			ToStage:    m.ToStage,
			FromStatus: m.FromStatus,
			ToStatus:   m.ToStatus,
			Actor:      m.Actor,
			CreatedAt:  m.CreatedAt,
		})
	}
	return items
}
