package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/routing-engine/internal/clock"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/repository"
	"github.com/spec-kit/routing-engine/internal/sequence"
)

var testEpoch = time.Date(2026, time.January, 22, 9, 0, 0, 0, time.UTC)

// memState is the shared store behind the fake repositories. Transactions
// are serialized by txMu and rolled back from a snapshot on error. Because
// whole transactions never interleave, concurrency tests over this fake check
// the admission arithmetic only; row-lock ordering is covered against Postgres
// in internal/repository/postgres_integration_test.go.
type memState struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextTicketID int64
	nextDeptID   int64
	nextMoveID   int64
	nextTypeID   int64

	tickets     map[int64]domain.Ticket
	departments map[string]domain.Department
	config      domain.SystemConfig
	sequences   map[string]int
	movements   []domain.Movement
	queryTypes  map[string]domain.QueryType
	failUpdate  map[int64]error
}

func newMemState(hubCapacity, receiverCapacity int) *memState {
	return &memState{
		tickets:     make(map[int64]domain.Ticket),
		departments: make(map[string]domain.Department),
		config:      domain.SystemConfig{HubCapacity: hubCapacity, ReceiverCapacity: receiverCapacity},
		sequences:   make(map[string]int),
		queryTypes:  make(map[string]domain.QueryType),
		failUpdate:  make(map[int64]error),
	}
}

type memSnapshot struct {
	nextTicketID, nextMoveID int64
	tickets                  map[int64]domain.Ticket
	sequences                map[string]int
	movements                []domain.Movement
}

func (s *memState) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		nextTicketID: s.nextTicketID,
		nextMoveID:   s.nextMoveID,
		tickets:      make(map[int64]domain.Ticket, len(s.tickets)),
		sequences:    make(map[string]int, len(s.sequences)),
		movements:    append([]domain.Movement(nil), s.movements...),
	}
	for id, t := range s.tickets {
		snap.tickets[id] = t
	}
	for k, v := range s.sequences {
		snap.sequences[k] = v
	}
	return snap
}

func (s *memState) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicketID = snap.nextTicketID
	s.nextMoveID = snap.nextMoveID
	s.tickets = snap.tickets
	s.sequences = snap.sequences
	s.movements = snap.movements
}

func (s *memState) addDepartment(code string) domain.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDeptID++
	dept := domain.Department{ID: s.nextDeptID, Code: code, Name: code + " department", CreatedAt: testEpoch}
	s.departments[code] = dept
	return dept
}

// insert stores a ticket as-is, bypassing the engine.
func (s *memState) insert(ticket domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicketID++
	ticket.ID = s.nextTicketID
	if ticket.Tag == "" {
		ticket.Tag = fmt.Sprintf("T-%d", ticket.ID)
	}
	s.tickets[ticket.ID] = ticket
	return ticket
}

func (s *memState) ticket(t *testing.T, id int64) domain.Ticket {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		t.Fatalf("ticket %d not found", id)
	}
	return ticket
}

func (s *memState) countStage(stage domain.TicketStage, targetDeptID *int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter := repository.TicketFilter{Stage: stage, TargetDeptID: targetDeptID}
	n := 0
	for _, t := range s.tickets {
		if matchesFilter(filter, &t) {
			n++
		}
	}
	return n
}

type txMarker struct{}

type memTransactor struct {
	state *memState
}

func (m memTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	m.state.txMu.Lock()
	defer m.state.txMu.Unlock()

	snap := m.state.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		m.state.restore(snap)
		return err
	}
	return nil
}

type memTickets struct {
	state *memState
}

func (r memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	for _, existing := range r.state.tickets {
		if existing.Tag == ticket.Tag {
			return fmt.Errorf("%w: duplicate tag %s", domain.ErrInvalidInput, ticket.Tag)
		}
	}
	r.state.nextTicketID++
	ticket.ID = r.state.nextTicketID
	r.state.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if err := r.state.failUpdate[ticket.ID]; err != nil {
		return err
	}
	if _, ok := r.state.tickets[ticket.ID]; !ok {
		return domain.ErrTicketNotFound
	}
	r.state.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	ticket, ok := r.state.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return &ticket, nil
}

func (r memTickets) GetByTag(_ context.Context, tag string) (*domain.Ticket, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	for _, ticket := range r.state.tickets {
		if ticket.Tag == tag {
			return &ticket, nil
		}
	}
	return nil, domain.ErrTicketNotFound
}

func (r memTickets) LockByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r memTickets) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	n := 0
	for _, ticket := range r.state.tickets {
		if matchesFilter(filter, &ticket) {
			n++
		}
	}
	return n, nil
}

func (r memTickets) LockOldest(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if filter.Limit <= 0 {
		return nil, nil
	}
	return r.List(ctx, filter)
}

func (r memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.state.tickets {
		if matchesFilter(filter, &ticket) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return ticketLess(filter.Order, &result[i], &result[j])
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(f repository.TicketFilter, ticket *domain.Ticket) bool {
	if f.Stage != "" && ticket.Stage != f.Stage {
		return false
	}
	if f.Status != "" && ticket.Status != f.Status {
		return false
	}
	if f.SourceDeptID != nil && ticket.SourceDeptID != *f.SourceDeptID {
		return false
	}
	if f.TargetDeptID != nil && (ticket.TargetDeptID == nil || *ticket.TargetDeptID != *f.TargetDeptID) {
		return false
	}
	if f.OwnerID != nil && (ticket.OwnerID == nil || *ticket.OwnerID != *f.OwnerID) {
		return false
	}
	if f.RequireTarget && ticket.TargetDeptID == nil {
		return false
	}
	return true
}

// ticketLess mirrors the ORDER BY clauses of the Postgres repository.
func ticketLess(order repository.TicketOrder, a, b *domain.Ticket) bool {
	switch order {
	case repository.OrderGrabbed:
		if c := compareNullable(a.GrabbedAt, b.GrabbedAt); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	case repository.OrderCompletedDesc:
		if c := compareNullable(a.CompletedAt, b.CompletedAt); c != 0 {
			return c > 0
		}
		return a.ID > b.ID
	default:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	}
}

// compareNullable orders timestamps ascending with nil last.
func compareNullable(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func (r memTickets) ListGrabbedSince(_ context.Context, since time.Time) ([]domain.Ticket, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.state.tickets {
		if ticket.Stage == domain.StageReceiverHold && ticket.GrabbedAt != nil && !ticket.GrabbedAt.Before(since) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].GrabbedAt.Equal(*result[j].GrabbedAt) {
			return result[i].GrabbedAt.After(*result[j].GrabbedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

type memDepartments struct {
	state *memState
}

func (r memDepartments) GetByCode(_ context.Context, code string) (*domain.Department, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	dept, ok := r.state.departments[code]
	if !ok {
		return nil, domain.ErrDepartmentNotFound
	}
	return &dept, nil
}

func (r memDepartments) GetByID(_ context.Context, id int64) (*domain.Department, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	for _, dept := range r.state.departments {
		if dept.ID == id {
			return &dept, nil
		}
	}
	return nil, domain.ErrDepartmentNotFound
}

func (r memDepartments) LockByCode(ctx context.Context, code string) (*domain.Department, error) {
	return r.GetByCode(ctx, code)
}

func (r memDepartments) List(_ context.Context) ([]domain.Department, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	result := make([]domain.Department, 0, len(r.state.departments))
	for _, dept := range r.state.departments {
		result = append(result, dept)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (r memDepartments) Upsert(_ context.Context, dept *domain.Department) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if existing, ok := r.state.departments[dept.Code]; ok {
		dept.ID = existing.ID
	} else {
		r.state.nextDeptID++
		dept.ID = r.state.nextDeptID
	}
	r.state.departments[dept.Code] = *dept
	return nil
}

type memConfig struct {
	state *memState
}

func (r memConfig) Get(_ context.Context) (*domain.SystemConfig, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	cfg := r.state.config
	return &cfg, nil
}

func (r memConfig) Lock(ctx context.Context) (*domain.SystemConfig, error) {
	return r.Get(ctx)
}

func (r memConfig) Update(_ context.Context, cfg *domain.SystemConfig) error {
	if cfg.HubCapacity <= 0 || cfg.ReceiverCapacity <= 0 {
		return domain.ErrInvalidInput
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.config = *cfg
	return nil
}

type memSequences struct {
	state *memState
}

func (r memSequences) Next(_ context.Context, date time.Time) (int, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	key := date.Format("2006-01-02")
	r.state.sequences[key]++
	return r.state.sequences[key], nil
}

type memMovements struct {
	state *memState
}

func (r memMovements) Create(_ context.Context, movement *domain.Movement) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.nextMoveID++
	movement.ID = r.state.nextMoveID
	r.state.movements = append(r.state.movements, *movement)
	return nil
}

func (r memMovements) ListByTicket(_ context.Context, ticketID int64) ([]domain.Movement, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	var result []domain.Movement
	for _, movement := range r.state.movements {
		if movement.TicketID == ticketID {
			result = append(result, movement)
		}
	}
	return result, nil
}

type memQueryTypes struct {
	state *memState
}

func (r memQueryTypes) GetByCode(_ context.Context, code string) (*domain.QueryType, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	qt, ok := r.state.queryTypes[code]
	if !ok {
		return nil, nil
	}
	return &qt, nil
}

func (r memQueryTypes) List(_ context.Context) ([]domain.QueryType, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	var result []domain.QueryType
	for _, qt := range r.state.queryTypes {
		result = append(result, qt)
	}
	return result, nil
}

func (r memQueryTypes) Upsert(_ context.Context, qt *domain.QueryType) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if existing, ok := r.state.queryTypes[qt.Code]; ok {
		qt.ID = existing.ID
	} else {
		r.state.nextTypeID++
		qt.ID = r.state.nextTypeID
	}
	r.state.queryTypes[qt.Code] = *qt
	return nil
}

type eventRecorder struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, event.Type)
	return nil
}

func (r *eventRecorder) count(eventType events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	state     *memState
	clock     *clock.Manual
	routing   *RoutingService
	dashboard *DashboardService
	events    *eventRecorder
	depts     map[string]domain.Department
}

// newFixture builds an engine over the fakes with the given capacities and
// departments. The clock advances one second per reading.
func newFixture(t *testing.T, hubCapacity, receiverCapacity int, deptCodes ...string) *fixture {
	t.Helper()
	state := newMemState(hubCapacity, receiverCapacity)
	f := &fixture{
		state:  state,
		clock:  clock.NewManual(testEpoch),
		events: &eventRecorder{},
		depts:  make(map[string]domain.Department),
	}
	f.clock.Step = time.Second
	for _, code := range append([]string{"SRC"}, deptCodes...) {
		f.depts[code] = state.addDepartment(code)
	}

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(f.events.handle)

	tickets := memTickets{state: state}
	f.routing = NewRoutingService(RoutingDependencies{
		Transactor:     memTransactor{state: state},
		TicketRepo:     tickets,
		DepartmentRepo: memDepartments{state: state},
		ConfigRepo:     memConfig{state: state},
		QueryTypeRepo:  memQueryTypes{state: state},
		MovementRepo:   memMovements{state: state},
		Sequences:      sequence.NewGenerator(memSequences{state: state}, time.UTC),
		Dispatcher:     dispatcher,
		Clock:          f.clock,
	})
	f.dashboard = NewDashboardService(DashboardDependencies{
		TicketRepo:     tickets,
		DepartmentRepo: memDepartments{state: state},
		ConfigRepo:     memConfig{state: state},
		Clock:          f.clock,
	})
	return f
}

func (f *fixture) create(t *testing.T, target string) *domain.Ticket {
	t.Helper()
	ticket, err := f.routing.CreateTicket(context.Background(), CreateTicketInput{
		TypeCode:   "QGD",
		SourceDept: "SRC",
		TargetDept: target,
		Title:      "purchase request",
		Actor:      "alice",
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func (f *fixture) push(t *testing.T, id int64) {
	t.Helper()
	if _, err := f.routing.PushToHub(context.Background(), id, "alice"); err != nil {
		t.Fatalf("push ticket %d: %v", id, err)
	}
}

func (f *fixture) deptID(code string) *int64 {
	id := f.depts[code].ID
	return &id
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
