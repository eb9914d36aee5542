package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherInvokesAllHandlers(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketPushed, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketPushed, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketGrabbed, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketPushed, TicketID: 1})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected joined handler error, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected handler calls: %v", calls)
	}
}

func TestDispatcherWithoutHandlers(t *testing.T) {
	t.Parallel()

	if err := NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventTicketCreated}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestDispatcherCatchAllRunsAfterTypedHandlers(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	var calls []string
	d.SubscribeAll(func(_ context.Context, e Event) error {
		calls = append(calls, "all:"+string(e.Type))
		return nil
	})
	d.Subscribe(EventTicketGrabbed, func(context.Context, Event) error {
		calls = append(calls, "grabbed")
		return nil
	})

	ctx := context.Background()
	if err := d.Publish(ctx, Event{Type: EventTicketGrabbed}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := d.Publish(ctx, Event{Type: EventCycleCompleted}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{"grabbed", "all:" + string(EventTicketGrabbed), "all:" + string(EventCycleCompleted)}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}
