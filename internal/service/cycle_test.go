package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/routing-engine/internal/domain"
)

func TestCycleScenarioHubFiveDepartmentThree(t *testing.T) {
	f := newFixture(t, 5, 3, "X")
	ctx := context.Background()
	var created []int64
	for i := 0; i < 6; i++ {
		created = append(created, f.create(t, "X").ID)
	}

	sender, err := f.routing.RunSenderCycle(ctx)
	if err != nil {
		t.Fatalf("sender cycle: %v", err)
	}
	if sender.Moved != 5 || sender.HubCount != 5 || sender.HubLimit != 5 {
		t.Fatalf("unexpected sender result: %+v", sender)
	}
	if sender.Message != "Moved 5 ticket(s) to Hub" {
		t.Fatalf("unexpected message %q", sender.Message)
	}
	if got := f.state.ticket(t, created[5]); got.Stage != domain.StageSenderHold {
		t.Fatalf("newest ticket should remain in sender hold, got %s", got.Stage)
	}

	grabber, err := f.routing.RunGrabberCycle(ctx)
	if err != nil {
		t.Fatalf("grabber cycle: %v", err)
	}
	if grabber.TotalMoved != 3 || grabber.DeptLimit != 3 {
		t.Fatalf("unexpected grabber result: %+v", grabber)
	}
	x := grabber.PerDepartment["X"]
	if x.Moved != 3 || x.Count != 3 || x.Message != "Moved 3 ticket(s)" {
		t.Fatalf("unexpected department result: %+v", x)
	}
	if src := grabber.PerDepartment["SRC"]; src.Moved != 0 || src.Message != "No pending tickets" {
		t.Fatalf("unexpected idle department result: %+v", src)
	}
	for i, id := range created[:3] {
		if got := f.state.ticket(t, id); got.Stage != domain.StageReceiverHold {
			t.Fatalf("ticket %d (#%d) not grabbed oldest-first: %s", id, i, got.Stage)
		}
	}
	if n := f.state.countStage(domain.StageHub, nil); n != 2 {
		t.Fatalf("expected 2 tickets left in hub, got %d", n)
	}

	again, err := f.routing.RunGrabberCycle(ctx)
	if err != nil {
		t.Fatalf("second grabber cycle: %v", err)
	}
	if again.TotalMoved != 0 || again.PerDepartment["X"].Message != "Receiver box is full" {
		t.Fatalf("expected full receiver box, got %+v", again.PerDepartment["X"])
	}
}

func TestSenderCycleAtCapacity(t *testing.T) {
	f := newFixture(t, 1, 3, "X")
	ctx := context.Background()
	f.push(t, f.create(t, "X").ID)
	waiting := f.create(t, "X")

	result, err := f.routing.RunSenderCycle(ctx)
	if err != nil {
		t.Fatalf("sender cycle: %v", err)
	}
	if result.Moved != 0 || result.HubCount != 1 || result.Message != "Hub is at capacity" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := f.state.ticket(t, waiting.ID); got.Stage != domain.StageSenderHold {
		t.Fatalf("waiting ticket moved: %s", got.Stage)
	}
}

func TestSenderCycleSkipsUnroutedTickets(t *testing.T) {
	f := newFixture(t, 10, 3, "X")
	orphan := f.state.insert(domain.Ticket{
		Title:        "orphan",
		Stage:        domain.StageSenderHold,
		Status:       domain.TicketStatusPending,
		SourceDeptID: f.depts["SRC"].ID,
		CreatedAt:    testEpoch.Add(-1),
	})
	routed := f.create(t, "X")

	result, err := f.routing.RunSenderCycle(context.Background())
	if err != nil {
		t.Fatalf("sender cycle: %v", err)
	}
	if result.Moved != 1 {
		t.Fatalf("expected one routed ticket moved, got %d", result.Moved)
	}
	if got := f.state.ticket(t, orphan.ID); got.Stage != domain.StageSenderHold {
		t.Fatalf("unrouted ticket entered hub")
	}
	if got := f.state.ticket(t, routed.ID); got.Stage != domain.StageHub {
		t.Fatalf("routed ticket not moved")
	}
}

func TestSenderCycleFailureRollsBackWholeBatch(t *testing.T) {
	f := newFixture(t, 10, 3, "X")
	a := f.create(t, "X")
	b := f.create(t, "X")
	f.state.failUpdate[b.ID] = errors.New("disk full")

	if _, err := f.routing.RunSenderCycle(context.Background()); err == nil {
		t.Fatalf("expected sender cycle error")
	}
	if got := f.state.ticket(t, a.ID); got.Stage != domain.StageSenderHold {
		t.Fatalf("partial batch applied: ticket a in %s", got.Stage)
	}
}

func TestGrabberCycleIsolatesDepartmentFailures(t *testing.T) {
	f := newFixture(t, 10, 5, "A", "B")
	ctx := context.Background()
	a1 := f.create(t, "A")
	a2 := f.create(t, "A")
	b1 := f.create(t, "B")
	for _, id := range []int64{a1.ID, a2.ID, b1.ID} {
		f.push(t, id)
	}
	f.state.failUpdate[a2.ID] = errors.New("connection reset")

	result, err := f.routing.RunGrabberCycle(ctx)
	if err != nil {
		t.Fatalf("grabber cycle: %v", err)
	}
	if result.Failed != 1 || result.PerDepartment["A"].Error == "" {
		t.Fatalf("expected department A failure recorded: %+v", result)
	}
	if result.PerDepartment["B"].Moved != 1 || result.TotalMoved != 1 {
		t.Fatalf("department B should still move: %+v", result)
	}
	if got := f.state.ticket(t, a1.ID); got.Stage != domain.StageHub {
		t.Fatalf("department A batch not rolled back: a1 in %s", got.Stage)
	}
	if got := f.state.ticket(t, b1.ID); got.Stage != domain.StageReceiverHold {
		t.Fatalf("department B ticket not grabbed: %s", got.Stage)
	}
}

func TestGrabberCycleReadsLimitsFresh(t *testing.T) {
	f := newFixture(t, 10, 1, "X")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.push(t, f.create(t, "X").ID)
	}

	first, err := f.routing.RunGrabberCycle(ctx)
	if err != nil {
		t.Fatalf("grabber cycle: %v", err)
	}
	if first.TotalMoved != 1 {
		t.Fatalf("expected 1 moved under limit 1, got %d", first.TotalMoved)
	}

	if err := (memConfig{state: f.state}).Update(ctx, &domain.SystemConfig{HubCapacity: 10, ReceiverCapacity: 3}); err != nil {
		t.Fatalf("update config: %v", err)
	}
	second, err := f.routing.RunGrabberCycle(ctx)
	if err != nil {
		t.Fatalf("grabber cycle: %v", err)
	}
	if second.TotalMoved != 2 || second.DeptLimit != 3 {
		t.Fatalf("expected raised limit to apply, got %+v", second)
	}
}

func TestGrabberCycleStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t, 10, 3, "X")
	f.push(t, f.create(t, "X").ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.routing.RunGrabberCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if n := f.state.countStage(domain.StageHub, nil); n != 1 {
		t.Fatalf("cancelled sweep moved tickets")
	}
}
