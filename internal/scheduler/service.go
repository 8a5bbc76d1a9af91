package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logx "listingd/pkg/logx"
)

// Service owns the task registry and the wake loop.
type Service struct {
	mu    sync.Mutex
	log   logx.Logger
	clock Clock
	tick  time.Duration

	tasks []*task
	names map[string]struct{}

	running bool
}

type Option func(*Service)

// WithClock injects the time source (tests).
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func New(cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	s := &Service{
		log:   log,
		clock: systemClock{},
		tick:  tick,
		names: map[string]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds a named periodic task. Names are unique for the process
// lifetime; registration order is invocation order within a wake cycle.
// A freshly registered task has no lastRun, so it is due on the first wake.
func (s *Service) Register(name string, interval time.Duration, action Action) error {
	if name == "" {
		return ErrEmptyName
	}
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrBadInterval, name)
	}
	if action == nil {
		return fmt.Errorf("scheduler: nil action for task %s", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}
	s.names[name] = struct{}{}
	s.tasks = append(s.tasks, &task{name: name, interval: interval, action: action})

	s.log.Info("task registered", logx.String("task", name), logx.Duration("interval", interval))
	return nil
}

// Run drives the wake loop until ctx is canceled. The first due-check
// happens immediately, so tasks without a lastRun start right away.
//
// Cancellation is observed once per wake and never interrupts an in-flight
// invocation; Run returns only ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.log.Info("scheduler started", logx.Duration("tick", s.tick), logx.Int("tasks", s.taskCount()))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.runDue(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runDue walks the registry in registration order and synchronously invokes
// every due task. Exported to the loop and to tests via the fake clock.
func (s *Service) runDue(ctx context.Context) {
	s.mu.Lock()
	tasks := make([]*task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	for _, t := range tasks {
		now := s.clock.Now()
		if !t.lastRun.IsZero() && now.Sub(t.lastRun) < t.interval {
			continue
		}

		// Advance lastRun before invoking: a long or failing action must
		// not re-trigger on the next tick, and the next due time is
		// measured from start, not completion.
		s.mu.Lock()
		t.lastRun = now
		s.mu.Unlock()

		s.invoke(ctx, t, now)
	}
}

// invoke runs one action, containing errors and panics at this call site.
// Nothing a task does may terminate the loop.
func (s *Service) invoke(ctx context.Context, t *task, started time.Time) {
	s.log.Info("task started", logx.String("task", t.name))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("task panicked",
					logx.String("task", t.name),
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())))
			}
		}()
		return t.action(ctx)
	}()

	took := s.clock.Now().Sub(started)

	s.mu.Lock()
	t.runs++
	t.lastTook = took
	if err != nil {
		t.failures++
		t.lastErr = err.Error()
	} else {
		t.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("task failed", logx.String("task", t.name), logx.Duration("took", took), logx.Err(err))
	} else {
		s.log.Info("task completed", logx.String("task", t.name), logx.Duration("took", took))
	}
}
