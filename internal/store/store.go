package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tech-grandpa/banana-paper-ui/internal/model"
)

// ErrNotFound is returned when a job id is unknown to the store.
var ErrNotFound = errors.New("job not found")

// entry pairs a job record with its own lock so updates to different
// jobs never serialize on each other.
type entry struct {
	mu  sync.Mutex
	job *model.Job
}

// Store is the process-wide registry of job records. It is safe for
// concurrent use by the runner (writer) and the query path (readers).
// Records are never deleted; retention is an operational concern, not
// the store's.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*entry),
	}
}

// Create inserts a new queued job record and returns its generated id.
func (s *Store) Create(job *model.Job) string {
	j := job.Clone()
	j.ID = uuid.New().String()
	j.Status = model.JobStatusQueued
	j.CreatedAt = time.Now()

	s.mu.Lock()
	s.jobs[j.ID] = &entry{job: j}
	s.mu.Unlock()

	return j.ID
}

// Get returns a consistent snapshot of the record. The snapshot is a
// deep copy; callers never observe a partially applied update.
func (s *Store) Get(id string) (*model.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// Update applies fn to the record as a single atomic mutation and
// returns a snapshot of the result. Once Update returns, any
// subsequent Get observes the new state.
func (s *Store) Update(id string, fn func(*model.Job)) (*model.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.job)
	return e.job.Clone(), nil
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
