package scheduler

func (s *Service) taskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Snapshot returns a point-in-time view of every registered task in
// registration order. Observability only, not a synchronization primitive.
func (s *Service) Snapshot() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskStatus{
			Name:     t.name,
			Interval: t.interval,
			LastRun:  t.lastRun,
			Runs:     t.runs,
			Failures: t.failures,
			LastErr:  t.lastErr,
			LastTook: t.lastTook,
		})
	}
	return out
}
