package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
)

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	// TypeCode is a registered query type code or free-form type text that is
	// transliterated to initials.
	TypeCode   string
	SourceDept string
	TargetDept string
	Title      string
	Content    string
	Payload    map[string]any
	Actor      string
	ParentID   *int64
}

// CreateTicket allocates a tag and inserts the ticket in sender hold.
func (s *RoutingService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	var (
		created *domain.Ticket
		event   events.Event
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ticket, ev, err := s.createInTx(ctx, input)
		if err != nil {
			return err
		}
		created, event = ticket, ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket created",
		zap.String("tag", created.Tag),
		zap.String("source", created.SourceDeptCode),
		zap.String("target", created.TargetDeptCode))
	s.publish(ctx, event)
	return created, nil
}

func (s *RoutingService) createInTx(ctx context.Context, input CreateTicketInput) (*domain.Ticket, events.Event, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, events.Event{}, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	typeText := strings.TrimSpace(input.TypeCode)
	if typeText == "" {
		return nil, events.Event{}, fmt.Errorf("%w: type is required", domain.ErrInvalidInput)
	}

	source, err := s.departments.GetByCode(ctx, strings.TrimSpace(input.SourceDept))
	if err != nil {
		return nil, events.Event{}, fmt.Errorf("source: %w", err)
	}
	target, err := s.departments.GetByCode(ctx, strings.TrimSpace(input.TargetDept))
	if err != nil {
		return nil, events.Event{}, fmt.Errorf("target: %w", err)
	}

	var queryTypeID *int64
	if s.queryTypes != nil {
		qt, err := s.queryTypes.GetByCode(ctx, typeText)
		if err != nil {
			return nil, events.Event{}, err
		}
		if qt != nil {
			if !qt.IsActive {
				return nil, events.Event{}, fmt.Errorf("%w: %s", domain.ErrQueryTypeInactive, qt.Code)
			}
			if !qt.Allows(target.ID) {
				return nil, events.Event{}, fmt.Errorf("%w: %s does not accept %s", domain.ErrDepartmentNotAllowed, target.Code, qt.Code)
			}
			queryTypeID = &qt.ID
			typeText = qt.Code
		}
	}

	now := s.clock.Now()
	tag, err := s.sequences.BuildTicketTag(ctx, typeText, target.Code, now)
	if err != nil {
		return nil, events.Event{}, err
	}

	ticket := &domain.Ticket{
		Tag:            tag,
		Title:          title,
		Content:        strings.TrimSpace(input.Content),
		Payload:        input.Payload,
		QueryTypeID:    queryTypeID,
		ParentID:       input.ParentID,
		Status:         domain.TicketStatusPending,
		Stage:          domain.StageSenderHold,
		SourceDeptID:   source.ID,
		TargetDeptID:   &target.ID,
		CreatedAt:      now,
		SourceDeptCode: source.Code,
		TargetDeptCode: target.Code,
	}
	if ticket.Payload == nil {
		ticket.Payload = map[string]any{}
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, events.Event{}, err
	}

	actor := actorOrSystem(input.Actor)
	if s.movements != nil {
		if err := s.movements.Create(ctx, &domain.Movement{
			TicketID:  ticket.ID,
			ToStage:   ticket.Stage,
			ToStatus:  ticket.Status,
			Actor:     actor,
			CreatedAt: now,
		}); err != nil {
			return nil, events.Event{}, err
		}
	}

	return ticket, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		TicketTag: ticket.Tag,
		Actor:     actor,
		Timestamp: now,
		Payload: events.TicketCreatedPayload{
			SourceDept: source.Code,
			TargetDept: target.Code,
			Title:      ticket.Title,
			ParentID:   ticket.ParentID,
		},
	}, nil
}
