package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "listingd/pkg/logx"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(clock Clock) *Service {
	return New(Config{Tick: time.Minute}, logx.Nop(), WithClock(clock))
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(nil)
	noop := func(context.Context) error { return nil }

	if err := s.Register("", time.Hour, noop); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("empty name: got %v", err)
	}
	if err := s.Register("fetch", 0, noop); !errors.Is(err, ErrBadInterval) {
		t.Fatalf("zero interval: got %v", err)
	}
	if err := s.Register("fetch", -time.Second, noop); !errors.Is(err, ErrBadInterval) {
		t.Fatalf("negative interval: got %v", err)
	}
	if err := s.Register("fetch", time.Hour, nil); err == nil {
		t.Fatalf("nil action: expected error")
	}
	if err := s.Register("fetch", time.Hour, noop); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := s.Register("fetch", time.Hour, noop); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("duplicate: got %v", err)
	}
}

func TestFirstWakeRunsEverything(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	s := newTestService(clock)

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		if err := s.Register(name, 6*time.Hour, func(context.Context) error {
			order = append(order, name)
			return nil
		}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	s.runDue(context.Background())

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected registration-order invocation, got %v", order)
	}
}

func TestDueArithmetic(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	s := newTestService(clock)

	runs := 0
	if err := s.Register("fetch", time.Hour, func(context.Context) error {
		runs++
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()

	s.runDue(ctx) // first wake, no lastRun
	if runs != 1 {
		t.Fatalf("after first wake: runs=%d", runs)
	}

	clock.Advance(59 * time.Minute)
	s.runDue(ctx)
	if runs != 1 {
		t.Fatalf("59m elapsed, task should not be due: runs=%d", runs)
	}

	clock.Advance(time.Minute) // exactly interval elapsed
	s.runDue(ctx)
	if runs != 2 {
		t.Fatalf("60m elapsed, task should be due: runs=%d", runs)
	}

	clock.Advance(90 * time.Minute) // overshoot, still one run per wake
	s.runDue(ctx)
	s.runDue(ctx)
	if runs != 3 {
		t.Fatalf("overshoot should not cause catch-up runs: runs=%d", runs)
	}
}

func TestLastRunSetBeforeAction(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	s := newTestService(clock)

	start := clock.Now()
	if err := s.Register("slow", time.Hour, func(context.Context) error {
		// A long action: time passes during the invocation.
		clock.Advance(10 * time.Minute)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	s.runDue(context.Background())

	st := s.Snapshot()
	if len(st) != 1 {
		t.Fatalf("expected 1 task, got %d", len(st))
	}
	if !st[0].LastRun.Equal(start) {
		t.Fatalf("lastRun should be the invocation start %v, got %v", start, st[0].LastRun)
	}
	if st[0].LastTook != 10*time.Minute {
		t.Fatalf("lastTook = %v, want 10m", st[0].LastTook)
	}

	// Next due time is measured from start, not completion.
	clock.Advance(50 * time.Minute) // start+60m total
	s.runDue(context.Background())
	if got := s.Snapshot()[0].Runs; got != 2 {
		t.Fatalf("task should be due 60m after start: runs=%d", got)
	}
}

func TestFailureDoesNotRetryEarly(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	s := newTestService(clock)

	runs := 0
	boom := errors.New("upstream down")
	if err := s.Register("fetch", time.Hour, func(context.Context) error {
		runs++
		return boom
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	s.runDue(ctx)
	clock.Advance(time.Minute)
	s.runDue(ctx)
	if runs != 1 {
		t.Fatalf("failed task must wait a full interval: runs=%d", runs)
	}

	st := s.Snapshot()[0]
	if st.Failures != 1 || st.LastErr != "upstream down" {
		t.Fatalf("status = %+v", st)
	}

	clock.Advance(time.Hour)
	s.runDue(ctx)
	if runs != 2 {
		t.Fatalf("task should retry after its interval: runs=%d", runs)
	}
}

func TestPanicIsContained(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	s := newTestService(clock)

	after := 0
	if err := s.Register("bad", time.Hour, func(context.Context) error {
		panic("kaput")
	}); err != nil {
		t.Fatalf("register bad: %v", err)
	}
	if err := s.Register("good", time.Hour, func(context.Context) error {
		after++
		return nil
	}); err != nil {
		t.Fatalf("register good: %v", err)
	}

	s.runDue(context.Background())

	if after != 1 {
		t.Fatalf("task after the panicking one did not run")
	}
	st := s.Snapshot()[0]
	if st.Failures != 1 || st.LastErr == "" {
		t.Fatalf("panic should count as a failure: %+v", st)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Config{Tick: 5 * time.Millisecond}, logx.Nop())

	ran := make(chan struct{}, 1)
	if err := s.Register("once", time.Hour, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("task never ran")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRunRejectsSecondLoop(t *testing.T) {
	s := New(Config{Tick: time.Hour}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	if err := s.Register("hold", time.Hour, func(c context.Context) error {
		close(started)
		<-c.Done()
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	go func() { _ = s.Run(ctx) }()
	<-started

	if err := s.Run(ctx); err == nil {
		t.Fatalf("second Run should be rejected")
	}
	cancel()
}
