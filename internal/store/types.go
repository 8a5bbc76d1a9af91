package store

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("store closed")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default when empty)
//   - "memory": dependency-free in-process backend
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Kind names a record collection. Writers of different kinds touch disjoint
// key spaces, so they are safe to interleave without a global lock.
type Kind string

const (
	KindJob    Kind = "jobs"
	KindCourse Kind = "courses"
	KindRun    Kind = "task_runs"
)

// Record is one deduplicated listing.
//
// Key is the dedup key and is unique within a Kind. FirstSeen is set once on
// insert; LastSeen moves forward on every observation. Active flips to false
// only via MarkInactiveBefore (the aggregators never reap).
type Record struct {
	Key       string
	Source    string
	Title     string
	Fields    map[string]string
	FirstSeen time.Time
	LastSeen  time.Time
	Active    bool
}

// Outcome reports what an upsert did.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
)

// Query filters Find results. Zero value means "everything".
type Query struct {
	Source     string
	ActiveOnly bool
	Limit      int
}

// RunEntry records one scheduled task invocation.
// Keep it compact and schema-stable.
type RunEntry struct {
	At     time.Time
	Task   string
	OK     bool
	Error  string
	TookMS int64
	Detail string // JSON summary (counts, failed sources)
}
