package scrape

import (
	"sync"
	"time"

	"leadscraper/internal/core/lead"
)

// Store is the process-wide job table: a concurrent map keyed by job
// id. Each job has a single writer (its orchestrator goroutine); any
// number of readers take consistent snapshots under the lock.
//
// Update enforces two invariants structurally: terminal jobs are never
// mutated again, and the progress percentage and the four lifetime
// counters never decrease.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new job. The store takes ownership of j.
func (s *Store) Create(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// Get returns a snapshot copy of the job, safe to read without
// observing partial updates.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	snap := *j
	if len(j.Records) > 0 {
		snap.Records = make([]lead.Record, len(j.Records))
		copy(snap.Records, j.Records)
	}
	return snap, true
}

// Update applies fn to the job under the write lock. It returns false
// when the job is unknown or already terminal. Monotonic fields are
// clamped so no mutation can make them regress.
func (s *Store) Update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return false
	}

	prev := *j
	fn(j)

	if j.Percent < prev.Percent {
		j.Percent = prev.Percent
	}
	if j.ScrapedCount < prev.ScrapedCount {
		j.ScrapedCount = prev.ScrapedCount
	}
	if j.SourcesProcessed < prev.SourcesProcessed {
		j.SourcesProcessed = prev.SourcesProcessed
	}
	if j.ErrorCount < prev.ErrorCount {
		j.ErrorCount = prev.ErrorCount
	}
	if j.AttemptCount < prev.AttemptCount {
		j.AttemptCount = prev.AttemptCount
	}
	return true
}

// Len reports the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep removes terminal jobs that finished before now-retention and
// returns how many were evicted. Running jobs are never touched.
func (s *Store) Sweep(retention time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, j := range s.jobs {
		if j.Status.Terminal() && !j.FinishedAt.IsZero() && now.Sub(j.FinishedAt) > retention {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}
