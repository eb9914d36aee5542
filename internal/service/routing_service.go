package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/capacity"
	"github.com/spec-kit/routing-engine/internal/clock"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/repository"
	"github.com/spec-kit/routing-engine/internal/sequence"
)

// RoutingService is the ticket state machine. Every operation runs in one
// transaction and holds no state between calls.
type RoutingService struct {
	tx          repository.Transactor
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
	config      repository.ConfigRepository
	queryTypes  repository.QueryTypeRepository
	movements   repository.MovementRepository
	sequences   *sequence.Generator
	dispatcher  events.Dispatcher
	clock       clock.Clock
	logger      *zap.Logger
}

// RoutingDependencies bundles collaborators for the routing service.
type RoutingDependencies struct {
	Transactor     repository.Transactor
	TicketRepo     repository.TicketRepository
	DepartmentRepo repository.DepartmentRepository
	ConfigRepo     repository.ConfigRepository
	QueryTypeRepo  repository.QueryTypeRepository
	MovementRepo   repository.MovementRepository
	Sequences      *sequence.Generator
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewRoutingService constructs the service.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{
		tx:          deps.Transactor,
		tickets:     deps.TicketRepo,
		departments: deps.DepartmentRepo,
		config:      deps.ConfigRepo,
		queryTypes:  deps.QueryTypeRepo,
		movements:   deps.MovementRepo,
		sequences:   deps.Sequences,
		dispatcher:  deps.Dispatcher,
		clock:       clk,
		logger:      logger.With(zap.String("component", "routing")),
	}
}

// PushToHub admits a sender-hold ticket into the hub.
func (s *RoutingService) PushToHub(ctx context.Context, ticketID int64, actor string) (*domain.Ticket, error) {
	var (
		moved   *domain.Ticket
		pending []events.Event
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cfg, err := s.config.Lock(ctx)
		if err != nil {
			return err
		}
		ticket, err := s.tickets.LockByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Stage != domain.StageSenderHold {
			return fmt.Errorf("%w: ticket %s is in %s", domain.ErrInvalidStageTransition, ticket.Tag, ticket.Stage)
		}
		if !ticket.Routed() {
			return fmt.Errorf("%w: %s", domain.ErrTicketNotRouted, ticket.Tag)
		}

		count, err := s.tickets.Count(ctx, repository.TicketFilter{Stage: domain.StageHub})
		if err != nil {
			return err
		}
		if !capacity.Admit(count, cfg.HubCapacity) {
			return fmt.Errorf("%w: %d/%d", domain.ErrHubAtCapacity, count, cfg.HubCapacity)
		}

		event, err := s.moveToHub(ctx, ticket, actor)
		if err != nil {
			return err
		}
		moved = ticket
		pending = append(pending, event)
		return nil
	})
	if err != nil {
		if domain.IsAdmissionRejected(err) {
			s.logger.Debug("push rejected", zap.Int64("ticket_id", ticketID), zap.Error(err))
		}
		return nil, err
	}
	s.publish(ctx, pending...)
	return moved, nil
}

// GrabForDepartment claims the oldest hub ticket targeted at the department.
// It returns nil, nil when nothing is waiting.
func (s *RoutingService) GrabForDepartment(ctx context.Context, deptCode, actor string) (*domain.Ticket, error) {
	var (
		grabbed *domain.Ticket
		pending []events.Event
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		dept, err := s.departments.LockByCode(ctx, strings.TrimSpace(deptCode))
		if err != nil {
			return err
		}
		cfg, err := s.config.Get(ctx)
		if err != nil {
			return err
		}
		count, err := s.tickets.Count(ctx, receiverFilter(dept.ID))
		if err != nil {
			return err
		}
		if !capacity.Admit(count, cfg.ReceiverCapacity) {
			return fmt.Errorf("%w: %s %d/%d", domain.ErrReceiverBoxFull, dept.Code, count, cfg.ReceiverCapacity)
		}

		candidates, err := s.tickets.LockOldest(ctx, hubFilter(dept.ID, 1))
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}
		ticket := &candidates[0]
		event, err := s.moveToReceiver(ctx, ticket, actor)
		if err != nil {
			return err
		}
		grabbed = ticket
		pending = append(pending, event)
		return nil
	})
	if err != nil {
		if domain.IsAdmissionRejected(err) {
			s.logger.Debug("grab rejected", zap.String("department", deptCode), zap.Error(err))
		}
		return nil, err
	}
	s.publish(ctx, pending...)
	return grabbed, nil
}

// AssignToUser moves a receiver-hold ticket into the user's task hold.
func (s *RoutingService) AssignToUser(ctx context.Context, ticketID int64, userID string) (*domain.Ticket, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}

	var (
		assigned *domain.Ticket
		pending  []events.Event
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.LockByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.OwnerID != nil {
			return fmt.Errorf("%w: ticket %s is owned by %s", domain.ErrAlreadyAssigned, ticket.Tag, *ticket.OwnerID)
		}
		if ticket.Stage != domain.StageReceiverHold {
			return fmt.Errorf("%w: ticket %s is in %s", domain.ErrInvalidStageTransition, ticket.Tag, ticket.Stage)
		}

		now := s.clock.Now()
		from := snapshot(ticket)
		ticket.Stage = domain.StageTaskHold
		ticket.Status = domain.TicketStatusAssigned
		ticket.OwnerID = &userID
		ticket.AssignedAt = &now
		if err := s.persistMove(ctx, ticket, from, userID, now); err != nil {
			return err
		}
		assigned = ticket
		pending = append(pending, movedEvent(events.EventTicketAssigned, ticket, from, userID, now))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending...)
	return assigned, nil
}

// FollowUpInput describes a child ticket raised when a task is completed.
type FollowUpInput struct {
	TypeCode   string
	TargetDept string
	Title      string
	Content    string
	Payload    map[string]any
}

// CompleteTicket marks an assigned ticket completed. The stage stays TaskHold.
func (s *RoutingService) CompleteTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, _, err := s.complete(ctx, ticketID, nil)
	return ticket, err
}

// CompleteWithFollowUp completes the ticket and creates a follow-up in the
// same transaction. The follow-up starts in sender hold of the department
// that handled the completed ticket.
func (s *RoutingService) CompleteWithFollowUp(ctx context.Context, ticketID int64, followUp FollowUpInput) (*domain.Ticket, *domain.Ticket, error) {
	return s.complete(ctx, ticketID, &followUp)
}

func (s *RoutingService) complete(ctx context.Context, ticketID int64, followUp *FollowUpInput) (*domain.Ticket, *domain.Ticket, error) {
	var (
		completed *domain.Ticket
		child     *domain.Ticket
		pending   []events.Event
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.LockByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusAssigned || ticket.OwnerID == nil {
			return fmt.Errorf("%w: ticket %s is %s", domain.ErrNotCompletable, ticket.Tag, ticket.Status)
		}

		now := s.clock.Now()
		from := snapshot(ticket)
		ticket.Status = domain.TicketStatusCompleted
		ticket.CompletedAt = &now
		owner := *ticket.OwnerID
		if err := s.persistMove(ctx, ticket, from, owner, now); err != nil {
			return err
		}
		completed = ticket
		pending = append(pending, movedEvent(events.EventTicketCompleted, ticket, from, owner, now))

		if followUp == nil {
			return nil
		}
		if ticket.TargetDeptCode == "" {
			return fmt.Errorf("%w: completed ticket has no handling department", domain.ErrTicketNotRouted)
		}
		created, event, err := s.createInTx(ctx, CreateTicketInput{
			TypeCode:   followUp.TypeCode,
			SourceDept: ticket.TargetDeptCode,
			TargetDept: followUp.TargetDept,
			Title:      followUp.Title,
			Content:    followUp.Content,
			Payload:    followUp.Payload,
			Actor:      owner,
			ParentID:   &ticket.ID,
		})
		if err != nil {
			return err
		}
		child = created
		pending = append(pending, event)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, pending...)
	return completed, child, nil
}

// GetTicket loads a ticket by its store id.
func (s *RoutingService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

// GetTicketByTag loads a ticket by tag.
func (s *RoutingService) GetTicketByTag(ctx context.Context, tag string) (*domain.Ticket, error) {
	return s.tickets.GetByTag(ctx, strings.TrimSpace(tag))
}

// ListMovements returns the audit trail of a ticket, oldest first.
func (s *RoutingService) ListMovements(ctx context.Context, ticketID int64) ([]domain.Movement, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	movements, err := s.movements.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []domain.Movement{}
	}
	return movements, nil
}

func (s *RoutingService) moveToHub(ctx context.Context, ticket *domain.Ticket, actor string) (events.Event, error) {
	now := s.clock.Now()
	from := snapshot(ticket)
	ticket.Stage = domain.StageHub
	ticket.Status = domain.TicketStatusPending
	ticket.PushedAt = &now
	if err := s.persistMove(ctx, ticket, from, actor, now); err != nil {
		return events.Event{}, err
	}
	return movedEvent(events.EventTicketPushed, ticket, from, actor, now), nil
}

func (s *RoutingService) moveToReceiver(ctx context.Context, ticket *domain.Ticket, actor string) (events.Event, error) {
	now := s.clock.Now()
	from := snapshot(ticket)
	ticket.Stage = domain.StageReceiverHold
	ticket.Status = domain.TicketStatusReceived
	ticket.GrabbedAt = &now
	if err := s.persistMove(ctx, ticket, from, actor, now); err != nil {
		return events.Event{}, err
	}
	return movedEvent(events.EventTicketGrabbed, ticket, from, actor, now), nil
}

type ticketState struct {
	stage  domain.TicketStage
	status domain.TicketStatus
}

func snapshot(ticket *domain.Ticket) ticketState {
	return ticketState{stage: ticket.Stage, status: ticket.Status}
}

func (s *RoutingService) persistMove(ctx context.Context, ticket *domain.Ticket, from ticketState, actor string, at time.Time) error {
	if !domain.ValidState(ticket.Stage, ticket.Status) {
		return fmt.Errorf("%w: %s/%s", domain.ErrInvalidStageTransition, ticket.Stage, ticket.Status)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return err
	}
	if s.movements == nil {
		return nil
	}
	return s.movements.Create(ctx, &domain.Movement{
		TicketID:   ticket.ID,
		FromStage:  &from.stage,
		ToStage:    ticket.Stage,
		FromStatus: &from.status,
		ToStatus:   ticket.Status,
		Actor:      actorOrSystem(actor),
		CreatedAt:  at,
	})
}

func movedEvent(eventType events.EventType, ticket *domain.Ticket, from ticketState, actor string, at time.Time) events.Event {
	return events.Event{
		Type:      eventType,
		TicketID:  ticket.ID,
		TicketTag: ticket.Tag,
		Actor:     actorOrSystem(actor),
		Timestamp: at,
		Payload: events.TicketMovedPayload{
			FromStage:  from.stage,
			ToStage:    ticket.Stage,
			ToStatus:   ticket.Status,
			TargetDept: ticket.TargetDeptCode,
			OwnerID:    ticket.OwnerID,
		},
	}
}

// publish runs after commit; handler failures never undo a transition.
func (s *RoutingService) publish(ctx context.Context, pending ...events.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, event := range pending {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.Int64("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return domain.ActorSystem
	}
	return actor
}

func receiverFilter(deptID int64) repository.TicketFilter {
	return repository.TicketFilter{Stage: domain.StageReceiverHold, TargetDeptID: &deptID}
}

func hubFilter(deptID int64, limit int) repository.TicketFilter {
	return repository.TicketFilter{
		Stage:        domain.StageHub,
		Status:       domain.TicketStatusPending,
		TargetDeptID: &deptID,
		Limit:        limit,
	}
}
