package events

import (
	"time"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketPushed    EventType = "ticket_pushed"
	EventTicketGrabbed   EventType = "ticket_grabbed"
	EventTicketAssigned  EventType = "ticket_assigned"
	EventTicketCompleted EventType = "ticket_completed"
	EventCycleCompleted  EventType = "cycle_completed"
)

// Event represents a domain event emitted after a transaction commits.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id,omitempty"`
	TicketTag string    `json:"ticket_tag,omitempty"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketMovedPayload describes a stage transition.
type TicketMovedPayload struct {
	FromStage  domain.TicketStage  `json:"from_stage"`
	ToStage    domain.TicketStage  `json:"to_stage"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	TargetDept string              `json:"target_dept,omitempty"`
	OwnerID    *string             `json:"owner_id,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	SourceDept string `json:"source_dept"`
	TargetDept string `json:"target_dept"`
	Title      string `json:"title"`
	ParentID   *int64 `json:"parent_id,omitempty"`
}

// CycleCompletedPayload summarizes one scheduler cycle.
type CycleCompletedPayload struct {
	Cycle        int64          `json:"cycle"`
	SenderMoved  int            `json:"sender_moved"`
	GrabberMoved int            `json:"grabber_moved"`
	HubCount     int            `json:"hub_count"`
	PerDept      map[string]int `json:"per_department,omitempty"`
}
