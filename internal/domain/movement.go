package domain

import "time"

// ActorSystem marks movements performed by the logistics scheduler.
const ActorSystem = "system"

// Movement is an immutable audit entry written with every transition.
type Movement struct {
	ID         int64
	TicketID   int64
	FromStage  *TicketStage
	ToStage    TicketStage
	FromStatus *TicketStatus
	ToStatus   TicketStatus
	Actor      string
	CreatedAt  time.Time
}
