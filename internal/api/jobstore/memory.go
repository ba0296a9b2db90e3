package jobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
)

// MemoryStore keeps job records in a mutex-guarded map. It is
// non-persistent: a process restart loses every tracked job. Intended
// for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]domain.Job),
	}
}

func (s *MemoryStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	// Return a copy so callers cannot mutate stored state.
	return &job, nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, id string, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}

	update.apply(&job)
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}

	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.jobs[id]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}
