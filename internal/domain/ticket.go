package domain

import "time"

// TicketStatus tracks workflow progress.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "PENDING"
	TicketStatusReceived  TicketStatus = "RECEIVED"
	TicketStatusAssigned  TicketStatus = "ASSIGNED"
	TicketStatusCompleted TicketStatus = "COMPLETED"
)

// TicketStage is the physical holding area of a ticket.
type TicketStage string

const (
	StageSenderHold   TicketStage = "SENDER_HOLD"
	StageHub          TicketStage = "HUB"
	StageReceiverHold TicketStage = "RECEIVER_HOLD"
	StageTaskHold     TicketStage = "TASK_HOLD"
)

// validStates enumerates the (stage, status) pairs a ticket may occupy.
var validStates = map[TicketStage][]TicketStatus{
	StageSenderHold:   {TicketStatusPending},
	StageHub:          {TicketStatusPending},
	StageReceiverHold: {TicketStatusReceived},
	StageTaskHold:     {TicketStatusAssigned, TicketStatusCompleted},
}

// ValidState reports whether the stage/status pair is part of the pipeline.
func ValidState(stage TicketStage, status TicketStatus) bool {
	for _, candidate := range validStates[stage] {
		if candidate == status {
			return true
		}
	}
	return false
}

// Ticket is a query ticket moving between departments.
type Ticket struct {
	ID           int64
	Tag          string
	Title        string
	Content      string
	Payload      map[string]any
	QueryTypeID  *int64
	ParentID     *int64
	Status       TicketStatus
	Stage        TicketStage
	SourceDeptID int64
	TargetDeptID *int64
	OwnerID      *string
	CreatedAt    time.Time
	PushedAt     *time.Time
	GrabbedAt    *time.Time
	AssignedAt   *time.Time
	CompletedAt  *time.Time

	// Department codes are joined in for projections; not persisted on the row.
	SourceDeptCode string
	TargetDeptCode string
}

// Routed reports whether the ticket has a target department.
func (t *Ticket) Routed() bool {
	return t.TargetDeptID != nil
}
