package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/capacity"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/repository"
)

// SenderCycleResult summarizes one sender sweep.
type SenderCycleResult struct {
	Moved    int    `json:"moved"`
	HubCount int    `json:"hub_count"`
	HubLimit int    `json:"hub_limit"`
	Message  string `json:"message"`
}

// DepartmentCycleResult is one department's share of a grabber sweep.
type DepartmentCycleResult struct {
	Moved   int    `json:"moved"`
	Count   int    `json:"count"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// GrabberCycleResult summarizes one grabber sweep.
type GrabberCycleResult struct {
	TotalMoved    int                              `json:"total_moved"`
	DeptLimit     int                              `json:"dept_limit"`
	PerDepartment map[string]DepartmentCycleResult `json:"per_department"`
	Failed        int                              `json:"failed"`
}

// RunSenderCycle moves as many of the oldest routed sender-hold tickets into
// the hub as its capacity allows, in one transaction.
func (s *RoutingService) RunSenderCycle(ctx context.Context) (*SenderCycleResult, error) {
	result := &SenderCycleResult{}
	var pending []events.Event

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		pending = pending[:0]
		cfg, err := s.config.Lock(ctx)
		if err != nil {
			return err
		}
		count, err := s.tickets.Count(ctx, repository.TicketFilter{Stage: domain.StageHub})
		if err != nil {
			return err
		}
		result.HubLimit = cfg.HubCapacity
		result.HubCount = count

		available := capacity.Available(count, cfg.HubCapacity)
		if available == 0 {
			result.Message = "Hub is at capacity"
			return nil
		}

		batch, err := s.tickets.LockOldest(ctx, repository.TicketFilter{
			Stage:         domain.StageSenderHold,
			Status:        domain.TicketStatusPending,
			RequireTarget: true,
			Limit:         available,
		})
		if err != nil {
			return err
		}
		for i := range batch {
			event, err := s.moveToHub(ctx, &batch[i], domain.ActorSystem)
			if err != nil {
				return err
			}
			pending = append(pending, event)
		}
		result.Moved = len(batch)
		result.HubCount = count + len(batch)
		result.Message = fmt.Sprintf("Moved %d ticket(s) to Hub", len(batch))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sender cycle: %w", err)
	}
	s.publish(ctx, pending...)
	return result, nil
}

// RunGrabberCycle fills every department's receiver hold from the hub. Each
// department runs in its own transaction; a failing department is recorded
// and the sweep continues.
func (s *RoutingService) RunGrabberCycle(ctx context.Context) (*GrabberCycleResult, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("grabber cycle: %w", err)
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("grabber cycle: %w", err)
	}

	result := &GrabberCycleResult{
		DeptLimit:     cfg.ReceiverCapacity,
		PerDepartment: make(map[string]DepartmentCycleResult, len(departments)),
	}
	for _, dept := range departments {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		deptResult, err := s.grabBatch(ctx, dept.Code)
		if err != nil {
			s.logger.Error("grabber batch failed", zap.String("department", dept.Code), zap.Error(err))
			result.Failed++
			result.PerDepartment[dept.Code] = DepartmentCycleResult{Message: "Batch failed", Error: err.Error()}
			continue
		}
		result.TotalMoved += deptResult.Moved
		result.PerDepartment[dept.Code] = deptResult
	}
	return result, nil
}

func (s *RoutingService) grabBatch(ctx context.Context, deptCode string) (DepartmentCycleResult, error) {
	var (
		result  DepartmentCycleResult
		pending []events.Event
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		result = DepartmentCycleResult{}
		pending = pending[:0]
		dept, err := s.departments.LockByCode(ctx, deptCode)
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
		result.Count = count

		available := capacity.Available(count, cfg.ReceiverCapacity)
		if available == 0 {
			result.Message = "Receiver box is full"
			return nil
		}

		batch, err := s.tickets.LockOldest(ctx, hubFilter(dept.ID, available))
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			result.Message = "No pending tickets"
			return nil
		}
		for i := range batch {
			event, err := s.moveToReceiver(ctx, &batch[i], domain.ActorSystem)
			if err != nil {
				return err
			}
			pending = append(pending, event)
		}
		result.Moved = len(batch)
		result.Count = count + len(batch)
		result.Message = fmt.Sprintf("Moved %d ticket(s)", len(batch))
		return nil
	})
	if err != nil {
		return DepartmentCycleResult{}, err
	}
	s.publish(ctx, pending...)
	return result, nil
}
