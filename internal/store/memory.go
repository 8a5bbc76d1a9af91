package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memoryStore keeps everything in process memory. It backs the tests and
// persistence-free dev runs; semantics mirror the sqlite driver.
type memoryStore struct {
	mu      sync.Mutex
	closed  bool
	records map[Kind]map[string]Record
	runs    []RunEntry
}

func NewMemory() Store {
	return &memoryStore{records: map[Kind]map[string]Record{}}
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Upsert(_ context.Context, kind Kind, rec Record) (Outcome, error) {
	if rec.Key == "" {
		return 0, errors.New("empty record key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	col := s.records[kind]
	if col == nil {
		col = map[string]Record{}
		s.records[kind] = col
	}

	if prev, ok := col[rec.Key]; ok {
		rec.FirstSeen = prev.FirstSeen
		col[rec.Key] = cloneRecord(rec)
		return OutcomeUpdated, nil
	}
	col[rec.Key] = cloneRecord(rec)
	return OutcomeCreated, nil
}

func (s *memoryStore) Find(_ context.Context, kind Kind, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []Record
	for _, rec := range s.records[kind] {
		if q.Source != "" && rec.Source != q.Source {
			continue
		}
		if q.ActiveOnly && !rec.Active {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memoryStore) MarkInactiveBefore(_ context.Context, kind Kind, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int64
	for key, rec := range s.records[kind] {
		if rec.Active && rec.LastSeen.Before(cutoff) {
			rec.Active = false
			s.records[kind][key] = rec
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) DeleteOlderThan(_ context.Context, kind Kind, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int64
	if kind == KindRun {
		kept := s.runs[:0]
		for _, e := range s.runs {
			if e.At.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, e)
		}
		s.runs = kept
		return n, nil
	}

	for key, rec := range s.records[kind] {
		if rec.LastSeen.Before(cutoff) {
			delete(s.records[kind], key)
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) AppendRun(_ context.Context, e RunEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.runs = append(s.runs, e)
	return nil
}

// Runs returns a copy of the recorded task runs (test helper).
func (s *memoryStore) Runs() []RunEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunEntry, len(s.runs))
	copy(out, s.runs)
	return out
}

func cloneRecord(r Record) Record {
	if len(r.Fields) > 0 {
		m := make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			m[k] = v
		}
		r.Fields = m
	}
	return r
}
