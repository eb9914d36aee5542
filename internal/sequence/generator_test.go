package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu       sync.Mutex
	counters map[string]int
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counters: make(map[string]int)}
}

func (s *memoryStore) Next(_ context.Context, date time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	key := date.Format("2006-01-02")
	s.counters[key]++
	return s.counters[key], nil
}

func TestBuildTag(t *testing.T) {
	t.Parallel()

	date := time.Date(2026, time.January, 22, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		seq  int
		want string
	}{
		{1, "QGD-PD-260122-001"},
		{42, "QGD-PD-260122-042"},
		{999, "QGD-PD-260122-999"},
		{1000, "QGD-PD-260122-1000"},
	}
	for _, tc := range cases {
		if got := BuildTag("QGD", "PD", date, tc.seq); got != tc.want {
			t.Fatalf("BuildTag seq=%d = %q, want %q", tc.seq, got, tc.want)
		}
	}
}

func TestGeneratorBuildTicketTag(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(newMemoryStore(), time.UTC)
	at := time.Date(2026, time.January, 22, 9, 30, 0, 0, time.UTC)

	first, err := gen.BuildTicketTag(context.Background(), "请购单", "PD", at)
	if err != nil {
		t.Fatalf("build tag: %v", err)
	}
	second, err := gen.BuildTicketTag(context.Background(), "请购单", "HRTJ", at.Add(time.Hour))
	if err != nil {
		t.Fatalf("build tag: %v", err)
	}
	if first != "QGD-PD-260122-001" || second != "QGD-HRTJ-260122-002" {
		t.Fatalf("unexpected tags %q, %q", first, second)
	}

	nextDay, err := gen.BuildTicketTag(context.Background(), "QGD", "PD", at.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("build tag: %v", err)
	}
	if nextDay != "QGD-PD-260123-001" {
		t.Fatalf("expected sequence to restart on a new day, got %q", nextDay)
	}
}

func TestGeneratorUsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+8", 8*60*60)
	gen := NewGenerator(newMemoryStore(), loc)
	// 20:00 UTC on the 21st is already the 22nd at UTC+8.
	at := time.Date(2026, time.January, 21, 20, 0, 0, 0, time.UTC)

	tag, err := gen.BuildTicketTag(context.Background(), "QGD", "PD", at)
	if err != nil {
		t.Fatalf("build tag: %v", err)
	}
	if tag != "QGD-PD-260122-001" {
		t.Fatalf("expected tag dated in configured zone, got %q", tag)
	}
}

func TestGeneratorConcurrentNextIsDistinct(t *testing.T) {
	t.Parallel()

	const callers = 64
	gen := NewGenerator(newMemoryStore(), time.UTC)
	at := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

	results := make(chan int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := gen.Next(context.Background(), at)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool, callers)
	for seq := range results {
		if seen[seq] {
			t.Fatalf("sequence %d issued twice", seq)
		}
		seen[seq] = true
	}
	for want := 1; want <= callers; want++ {
		if !seen[want] {
			t.Fatalf("sequence %d missing from %d results", want, len(seen))
		}
	}
}

func TestGeneratorPropagatesStoreError(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.err = errors.New("connection refused")
	gen := NewGenerator(store, time.UTC)

	if _, err := gen.BuildTicketTag(context.Background(), "QGD", "PD", time.Now()); !errors.Is(err, store.err) {
		t.Fatalf("expected store error, got %v", err)
	}
}
