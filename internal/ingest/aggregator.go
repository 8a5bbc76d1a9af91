package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"listingd/internal/source"
	"listingd/internal/store"
	logx "listingd/pkg/logx"
)

// SourceError tags a failed connector call with its source name.
type SourceError struct {
	Source string `json:"source"`
	Err    string `json:"error"`
}

// Report summarizes one aggregator run.
type Report struct {
	Kind    store.Kind    `json:"kind"`
	Fetched int           `json:"fetched"`
	New     int           `json:"new"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"` // normalization + upsert casualties
	OK      int           `json:"sources_ok"`
	Failed  []SourceError `json:"failed_sources,omitempty"`
}

// TotalFailure reports whether no source delivered anything usable.
// Zero items from healthy sources is NOT a failure ("nothing changed" vs
// "could not check").
func (r Report) TotalFailure() bool {
	return r.OK == 0 && len(r.Failed) > 0
}

func (r Report) String() string {
	var failed []string
	for _, f := range r.Failed {
		failed = append(failed, f.Source)
	}
	s := fmt.Sprintf("%s: %d fetched, %d new, %d updated, %d skipped", r.Kind, r.Fetched, r.New, r.Updated, r.Skipped)
	if len(failed) > 0 {
		s += ", failed: " + strings.Join(failed, ",")
	}
	return s
}

// Aggregator refreshes the deduplicated view of one record kind.
type Aggregator struct {
	kind    store.Kind
	sources []source.Connector
	store   store.Store
	log     logx.Logger

	// fetchTimeout bounds each connector call individually.
	fetchTimeout time.Duration
	now          func() time.Time
}

type AggregatorOption func(*Aggregator)

// WithFetchTimeout overrides the default per-source fetch bound.
func WithFetchTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregator(kind store.Kind, sources []source.Connector, st store.Store, log logx.Logger, opts ...AggregatorOption) *Aggregator {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Aggregator{
		kind:         kind,
		sources:      sources,
		store:        st,
		log:          log.With(logx.String("kind", string(kind))),
		fetchTimeout: 30 * time.Second,
		now:          time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// fetchResult is the ephemeral per-source outcome of one run's fan-out.
type fetchResult struct {
	source string
	items  []source.Item
	err    error
}

// Run fans out to every connector, waits for all of them to settle, then
// normalizes and upserts whatever the healthy sources returned.
//
// The returned error is non-nil only on total failure (every source down);
// partial failure is a successful run with Failed entries in the report.
func (a *Aggregator) Run(ctx context.Context) (Report, error) {
	rep := Report{Kind: a.kind}
	start := a.now()

	results := a.fetchAll(ctx)

	var items []source.Item
	var itemSource []string
	for _, res := range results {
		if res.err != nil {
			rep.Failed = append(rep.Failed, SourceError{Source: res.source, Err: res.err.Error()})
			a.log.Warn("source fetch failed", logx.String("source", res.source), logx.Err(res.err))
			continue
		}
		rep.OK++
		rep.Fetched += len(res.items)
		for _, it := range res.items {
			items = append(items, it)
			itemSource = append(itemSource, res.source)
		}
	}

	if rep.TotalFailure() {
		return rep, errors.New("all sources failed")
	}

	// Normalize + in-run dedup, then idempotent upsert by key. Upsert
	// effects are order-independent, so cross-source ordering is free.
	now := a.now()
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		rec, err := Normalize(it, itemSource[i], a.kind, now)
		if err != nil {
			rep.Skipped++
			a.log.Debug("item skipped", logx.String("source", itemSource[i]), logx.Err(err))
			continue
		}
		if _, dup := seen[rec.Key]; dup {
			continue
		}
		seen[rec.Key] = struct{}{}

		outcome, err := a.store.Upsert(ctx, a.kind, rec)
		if err != nil {
			// One bad record must not sink the batch.
			rep.Skipped++
			a.log.Warn("upsert failed", logx.String("key", rec.Key), logx.Err(err))
			continue
		}
		switch outcome {
		case store.OutcomeCreated:
			rep.New++
		case store.OutcomeUpdated:
			rep.Updated++
		}
	}

	a.log.Info("aggregation complete",
		logx.Int("fetched", rep.Fetched),
		logx.Int("new", rep.New),
		logx.Int("updated", rep.Updated),
		logx.Int("skipped", rep.Skipped),
		logx.Int("sources_ok", rep.OK),
		logx.Int("sources_failed", len(rep.Failed)),
		logx.Duration("took", a.now().Sub(start)))

	return rep, nil
}

// fetchAll runs every connector concurrently and joins on all of them.
// Each call gets its own timeout; a timed-out or failed call becomes an
// error entry, never a run abort.
func (a *Aggregator) fetchAll(ctx context.Context) []fetchResult {
	out := make([]fetchResult, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src source.Connector) {
			defer wg.Done()
			defer func() {
				// A panicking connector counts as a failed source.
				if r := recover(); r != nil {
					out[i] = fetchResult{source: src.Name(), err: fmt.Errorf("panic: %v", r)}
				}
			}()

			fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
			defer cancel()

			items, err := src.Fetch(fctx)
			out[i] = fetchResult{source: src.Name(), items: items, err: err}
		}(i, src)
	}
	wg.Wait()
	return out
}
