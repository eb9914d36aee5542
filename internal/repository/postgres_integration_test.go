package repository_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/clock"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/repository"
	"github.com/spec-kit/routing-engine/internal/sequence"
	"github.com/spec-kit/routing-engine/internal/service"
	"github.com/spec-kit/routing-engine/internal/testutil"
)

func newEngine(pool *pgxpool.Pool, clk clock.Clock) *service.RoutingService {
	return service.NewRoutingService(service.RoutingDependencies{
		Transactor:     repository.NewTransactor(pool),
		TicketRepo:     repository.NewTicketRepository(pool),
		DepartmentRepo: repository.NewDepartmentRepository(pool),
		ConfigRepo:     repository.NewConfigRepository(pool),
		QueryTypeRepo:  repository.NewQueryTypeRepository(pool),
		MovementRepo:   repository.NewMovementRepository(pool),
		Sequences:      sequence.NewGenerator(repository.NewSequenceRepository(pool), time.UTC),
		Clock:          clk,
	})
}

func TestSequenceNextConcurrent(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool, 100, 50)

	repo := repository.NewSequenceRepository(pool)
	day := time.Date(2026, time.January, 22, 23, 59, 0, 0, time.UTC)

	const callers = 32
	got := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := repo.Next(ctx, day)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			got[i] = n
		}(i)
	}
	wg.Wait()

	sort.Ints(got)
	for i, n := range got {
		if n != i+1 {
			t.Fatalf("expected dense sequence 1..%d, got %v", callers, got)
		}
	}

	current, err := repo.Current(ctx, day)
	if err != nil || current != callers {
		t.Fatalf("current = %d, %v", current, err)
	}
	next, err := repo.Next(ctx, day.Add(time.Minute))
	if err != nil || next != 1 {
		t.Fatalf("new day should restart at 1, got %d, %v", next, err)
	}
}

func TestConcurrentAdmissionNeverOvershoots(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool, 5, 3)

	testutil.InsertDepartment(t, ctx, pool, "SRC")
	testutil.InsertDepartment(t, ctx, pool, "PD")

	engine := newEngine(pool, clock.NewSystem())
	tickets := repository.NewTicketRepository(pool)

	var ids []int64
	for i := 0; i < 12; i++ {
		ticket, err := engine.CreateTicket(ctx, service.CreateTicketInput{
			TypeCode:   "QGD",
			SourceDept: "SRC",
			TargetDept: "PD",
			Title:      "paper",
			Actor:      "carol",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, ticket.ID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	pushed, rejected := 0, 0
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := engine.PushToHub(ctx, id, "carol")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				pushed++
			case errors.Is(err, domain.ErrHubAtCapacity):
				rejected++
			default:
				t.Errorf("push %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if pushed != 5 || rejected != 7 {
		t.Fatalf("expected 5 pushed and 7 rejected, got %d/%d", pushed, rejected)
	}
	hub, err := tickets.Count(ctx, repository.TicketFilter{Stage: domain.StageHub})
	if err != nil || hub != 5 {
		t.Fatalf("hub count = %d, %v", hub, err)
	}

	grabbed, full := 0, 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := engine.GrabForDepartment(ctx, "PD", "dave")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && ticket != nil:
				grabbed++
			case errors.Is(err, domain.ErrReceiverBoxFull):
				full++
			default:
				t.Errorf("grab: %v %v", ticket, err)
			}
		}()
	}
	wg.Wait()

	if grabbed != 3 || full != 3 {
		t.Fatalf("expected 3 grabbed and 3 rejected, got %d/%d", grabbed, full)
	}

	grabbedTickets, err := tickets.List(ctx, repository.TicketFilter{Stage: domain.StageReceiverHold})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// FIFO: the grabbed tickets are the three oldest pushed ones.
	hubLeft, err := tickets.List(ctx, repository.TicketFilter{Stage: domain.StageHub})
	if err != nil {
		t.Fatalf("list hub: %v", err)
	}
	for _, g := range grabbedTickets {
		for _, h := range hubLeft {
			if g.CreatedAt.After(h.CreatedAt) {
				t.Fatalf("grabbed %s before older %s", g.Tag, h.Tag)
			}
		}
	}
}

func TestTicketRoundTrip(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool, 5, 3)

	testutil.InsertDepartment(t, ctx, pool, "SRC")
	testutil.InsertDepartment(t, ctx, pool, "PD")

	clk := clock.NewManual(time.Date(2026, time.January, 22, 9, 0, 0, 0, time.UTC))
	clk.Step = time.Second
	engine := newEngine(pool, clk)

	created, err := engine.CreateTicket(ctx, service.CreateTicketInput{
		TypeCode:   "请购单",
		SourceDept: "SRC",
		TargetDept: "PD",
		Title:      "paper",
		Payload:    map[string]any{"qty": float64(3)},
		Actor:      "carol",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Tag != "QGD-PD-260122-001" {
		t.Fatalf("unexpected tag %s", created.Tag)
	}

	if _, err := engine.PushToHub(ctx, created.ID, "carol"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, err := engine.GrabForDepartment(ctx, "PD", "dave"); err != nil {
		t.Fatalf("grab: %v", err)
	}
	if _, err := engine.AssignToUser(ctx, created.ID, "dave"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	done, err := engine.CompleteTicket(ctx, created.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	stored, err := engine.GetTicketByTag(ctx, created.Tag)
	if err != nil {
		t.Fatalf("get by tag: %v", err)
	}
	if stored.Stage != domain.StageTaskHold || stored.Status != domain.TicketStatusCompleted || *stored.OwnerID != "dave" {
		t.Fatalf("unexpected stored ticket %+v", stored)
	}
	if stored.Payload["qty"] != float64(3) || stored.SourceDeptCode != "SRC" || stored.TargetDeptCode != "PD" {
		t.Fatalf("payload or joins lost: %+v", stored)
	}
	if !done.CompletedAt.Equal(*stored.CompletedAt) {
		t.Fatalf("completed_at mismatch %v vs %v", done.CompletedAt, stored.CompletedAt)
	}

	moves, err := engine.ListMovements(ctx, created.ID)
	if err != nil || len(moves) != 5 {
		t.Fatalf("expected 5 movements, got %d, %v", len(moves), err)
	}

	if _, err := engine.GetTicket(ctx, 9999); !errors.Is(err, domain.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestConfigLockRecreatesMissingRow(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool, 5, 3)
	t.Cleanup(func() { testutil.TruncateAll(t, context.Background(), pool, 100, 50) })

	if _, err := pool.Exec(ctx, `DELETE FROM system_config`); err != nil {
		t.Fatalf("delete config: %v", err)
	}

	repo := repository.NewConfigRepository(pool)
	var locked *domain.SystemConfig
	err := repository.NewTransactor(pool).WithTx(ctx, func(ctx context.Context) error {
		var err error
		locked, err = repo.Lock(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if locked.HubCapacity != domain.DefaultHubCapacity || locked.ReceiverCapacity != domain.DefaultReceiverCapacity {
		t.Fatalf("expected default limits, got %+v", locked)
	}

	var rows int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM system_config`).Scan(&rows); err != nil || rows != 1 {
		t.Fatalf("expected config row to be restored, got %d, %v", rows, err)
	}
}
