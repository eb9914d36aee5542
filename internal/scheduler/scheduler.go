// Package scheduler drives the batch routing sweeps on a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/observability"
	"github.com/spec-kit/routing-engine/internal/service"
)

// ErrAlreadyRunning is returned when another scheduler holds the lock file.
var ErrAlreadyRunning = errors.New("another logistics scheduler is already running")

// Engine is the batch surface of the routing service.
type Engine interface {
	RunSenderCycle(ctx context.Context) (*service.SenderCycleResult, error)
	RunGrabberCycle(ctx context.Context) (*service.GrabberCycleResult, error)
}

// Options configures a Scheduler.
type Options struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
	// LockPath guards against two schedulers on one host. Empty disables it.
	LockPath   string
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher
}

// Report is the outcome of one cycle.
type Report struct {
	Cycle    int64                       `json:"cycle"`
	Sender   *service.SenderCycleResult  `json:"sender"`
	Grabber  *service.GrabberCycleResult `json:"grabber"`
	Duration time.Duration               `json:"duration"`
}

// Scheduler runs sender then grabber sweeps every interval.
type Scheduler struct {
	engine     Engine
	logger     *zap.Logger
	interval   time.Duration
	backoff    time.Duration
	lock       *flock.Flock
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	cycles     atomic.Int64
	wait       func(ctx context.Context, d time.Duration) bool
}

// New builds a scheduler. Zero durations fall back to 15s and 5s.
func New(engine Engine, logger *zap.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		engine:     engine,
		logger:     logger.With(zap.String("component", "logistics")),
		interval:   opts.Interval,
		backoff:    opts.ErrorBackoff,
		metrics:    opts.Metrics,
		dispatcher: opts.Dispatcher,
		wait:       sleepCtx,
	}
	if opts.LockPath != "" {
		s.lock = flock.New(opts.LockPath)
	}
	return s
}

// Run loops until ctx is cancelled. A failed cycle is logged and retried
// after the error backoff; Run itself only fails when the lock is held.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return ErrAlreadyRunning
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn("failed to release scheduler lock", zap.Error(err))
			}
		}()
	}

	s.logger.Info("logistics scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("error_backoff", s.backoff))

	for {
		wait := s.interval
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error("logistics cycle failed; backing off",
				zap.Error(err),
				zap.Duration("retry_in", s.backoff))
			wait = s.backoff
		}
		if !s.wait(ctx, wait) {
			break
		}
	}

	s.logger.Info("logistics scheduler stopped", zap.Int64("cycles", s.cycles.Load()))
	return nil
}

// RunOnce performs one sender sweep followed by one grabber sweep. A panic in
// either sweep is converted into an error.
func (s *Scheduler) RunOnce(ctx context.Context) (report *Report, err error) {
	cycle := s.cycles.Add(1)
	started := time.Now()
	report = &Report{Cycle: cycle}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle %d panicked: %v", cycle, r)
		}
		report.Duration = time.Since(started)
		s.record(report, err)
	}()

	report.Sender, err = s.engine.RunSenderCycle(ctx)
	if err != nil {
		return report, err
	}
	report.Grabber, err = s.engine.RunGrabberCycle(ctx)
	if err != nil {
		return report, err
	}
	s.heartbeat(ctx, report)
	return report, nil
}

// Cycles returns how many cycles have started.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

func (s *Scheduler) heartbeat(ctx context.Context, report *Report) {
	fields := []zap.Field{
		zap.Int64("cycle", report.Cycle),
		zap.Int("sender_moved", report.Sender.Moved),
		zap.Int("grabber_moved", report.Grabber.TotalMoved),
		zap.Int("hub_count", report.Sender.HubCount),
		zap.Int("hub_limit", report.Sender.HubLimit),
	}
	perDept := movedByDepartment(report.Grabber)
	if len(perDept) > 0 {
		fields = append(fields, zap.Any("per_department", perDept))
	}
	if report.Grabber.Failed > 0 {
		fields = append(fields, zap.Int("failed_departments", report.Grabber.Failed))
	}
	s.logger.Info("logistics heartbeat", fields...)

	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventCycleCompleted,
		Actor:     "system",
		Timestamp: time.Now().UTC(),
		Payload: events.CycleCompletedPayload{
			Cycle:        report.Cycle,
			SenderMoved:  report.Sender.Moved,
			GrabberMoved: report.Grabber.TotalMoved,
			HubCount:     report.Sender.HubCount,
			PerDept:      perDept,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("cycle event handler failed", zap.Error(err))
	}
}

func (s *Scheduler) record(report *Report, err error) {
	senderMoved, grabberMoved := 0, 0
	if report.Sender != nil {
		senderMoved = report.Sender.Moved
	}
	if report.Grabber != nil {
		grabberMoved = report.Grabber.TotalMoved
	}
	s.metrics.RecordCycle(senderMoved, grabberMoved, report.Duration, err != nil)
}

func movedByDepartment(result *service.GrabberCycleResult) map[string]int {
	if result == nil {
		return nil
	}
	var moved map[string]int
	for code, dept := range result.PerDepartment {
		if dept.Moved == 0 {
			continue
		}
		if moved == nil {
			moved = make(map[string]int)
		}
		moved[code] = dept.Moved
	}
	return moved
}

// sleepCtx waits for d and reports false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
