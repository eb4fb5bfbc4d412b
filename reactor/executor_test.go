package reactor_test

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/asynchttp/reactor"
)

func TestLoopRunsTasksSerially(t *testing.T) {
	g := reactor.NewGroup(4)
	defer g.Shutdown()

	loop := g.Assign(1)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		n := i
		if err := loop.Submit(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()

	if len(order) != 20 {
		t.Fatalf("expected 20 tasks to run, got %d", len(order))
	}
	for i, n := range order {
		if i != n {
			t.Fatalf("expected serial execution order, got %v", order)
		}
	}
}

func TestGroupAssignIsStable(t *testing.T) {
	g := reactor.NewGroup(4)
	defer g.Shutdown()

	first := g.Assign(42)
	second := g.Assign(42)
	if first != second {
		t.Fatal("expected Assign to be stable for the same key")
	}
}

func TestGroupShutdownRejectsLateSubmit(t *testing.T) {
	g := reactor.NewGroup(2)
	loop := g.Assign(1)
	g.Shutdown()

	if err := loop.Submit(func() {}); err == nil {
		t.Fatal("expected Submit on a shut-down loop to be rejected")
	}
}

func TestSchedulerFiresAfterDelay(t *testing.T) {
	s := reactor.NewScheduler()
	fired := make(chan struct{})
	c := s.Schedule(10*time.Millisecond, func() { close(fired) })
	defer c.Cancel()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scheduled task")
	}
}

func TestSchedulerCancelPreventsFiring(t *testing.T) {
	s := reactor.NewScheduler()
	fired := make(chan struct{})
	c := s.Schedule(50*time.Millisecond, func() { close(fired) })
	if err := c.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	select {
	case <-fired:
		t.Fatal("did not expect a canceled task to fire")
	case <-time.After(100 * time.Millisecond):
	}
}
