package scheduler

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateTask = errors.New("scheduler: duplicate task name")
	ErrBadInterval   = errors.New("scheduler: interval must be positive")
	ErrEmptyName     = errors.New("scheduler: task name is empty")
)

// Action is one schedulable unit of work. A non-nil error marks the run as
// failed; the task is retried at its next interval, never immediately.
type Action func(ctx context.Context) error

// Clock provides the time base for due-ness arithmetic. Injected in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config tunes the wake loop.
type Config struct {
	// Tick is the wake-check interval. It should be short relative to task
	// intervals (tasks run every few hours; the default tick is a minute).
	Tick time.Duration
}

const defaultTick = time.Minute

type task struct {
	name     string
	interval time.Duration
	action   Action

	// Mutated only by the loop goroutine (or whoever calls runDue).
	lastRun  time.Time
	runs     uint64
	failures uint64
	lastErr  string
	lastTook time.Duration
}

// TaskStatus is a point-in-time view of one registered task.
type TaskStatus struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run"`
	Runs     uint64        `json:"runs"`
	Failures uint64        `json:"failures"`
	LastErr  string        `json:"last_err,omitempty"`
	LastTook time.Duration `json:"last_took"`
}
