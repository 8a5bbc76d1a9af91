// Package cleanup enforces retention across collections that accumulate
// unbounded history: stale listings and task-run logs.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listingd/internal/store"
	logx "listingd/pkg/logx"
)

// RetentionPolicy hard-deletes records of one kind past a fixed age.
type RetentionPolicy struct {
	Kind   store.Kind
	MaxAge time.Duration
}

// DeactivationPolicy marks listings inactive when no refresh has observed
// them within the grace window. Deactivated records stay queryable until
// their RetentionPolicy horizon removes them.
type DeactivationPolicy struct {
	Kind  store.Kind
	Grace time.Duration
}

// KindResult is the per-kind outcome of one sweep.
type KindResult struct {
	Kind    store.Kind `json:"kind"`
	Removed int64      `json:"removed"`
	Err     string     `json:"error,omitempty"`
}

// Report summarizes one sweep run.
type Report struct {
	Deactivated int64        `json:"deactivated"`
	Kinds       []KindResult `json:"kinds"`
}

func (r Report) String() string {
	parts := make([]string, 0, len(r.Kinds))
	for _, k := range r.Kinds {
		if k.Err != "" {
			parts = append(parts, fmt.Sprintf("%s: failed", k.Kind))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d removed", k.Kind, k.Removed))
	}
	return fmt.Sprintf("deactivated %d; %s", r.Deactivated, strings.Join(parts, ", "))
}

// Sweeper runs the retention sweep. It talks only to the store; it knows
// nothing about sources or the aggregators' activity flags.
type Sweeper struct {
	store      store.Store
	log        logx.Logger
	policies   []RetentionPolicy
	deactivate []DeactivationPolicy
	now        func() time.Time
}

type Option func(*Sweeper)

// WithDeactivation adds grace-window deactivation passes.
func WithDeactivation(d ...DeactivationPolicy) Option {
	return func(s *Sweeper) { s.deactivate = append(s.deactivate, d...) }
}

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func New(st store.Store, policies []RetentionPolicy, log logx.Logger, opts ...Option) *Sweeper {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Sweeper{store: st, log: log, policies: policies, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run applies every deactivation and retention policy. A failure for one
// kind is logged and isolated; the remaining kinds still proceed. The
// returned error is non-nil only when every retention policy failed.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	rep := Report{}
	now := s.now()

	for _, d := range s.deactivate {
		if d.Grace <= 0 {
			continue
		}
		n, err := s.store.MarkInactiveBefore(ctx, d.Kind, now.Add(-d.Grace))
		if err != nil {
			s.log.Warn("deactivation pass failed", logx.String("kind", string(d.Kind)), logx.Err(err))
			continue
		}
		rep.Deactivated += n
		if n > 0 {
			s.log.Info("listings deactivated", logx.String("kind", string(d.Kind)), logx.Int64("count", n))
		}
	}

	failed := 0
	for _, p := range s.policies {
		if p.MaxAge <= 0 {
			continue
		}
		cutoff := now.Add(-p.MaxAge)
		n, err := s.store.DeleteOlderThan(ctx, p.Kind, cutoff)
		res := KindResult{Kind: p.Kind, Removed: n}
		if err != nil {
			failed++
			res.Err = err.Error()
			s.log.Warn("sweep failed", logx.String("kind", string(p.Kind)), logx.Err(err))
		} else {
			s.log.Info("sweep complete",
				logx.String("kind", string(p.Kind)),
				logx.Int64("removed", n),
				logx.Time("cutoff", cutoff))
		}
		rep.Kinds = append(rep.Kinds, res)
	}

	if len(rep.Kinds) > 0 && failed == len(rep.Kinds) {
		return rep, errors.New("all retention sweeps failed")
	}
	return rep, nil
}
