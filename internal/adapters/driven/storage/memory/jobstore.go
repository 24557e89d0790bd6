package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
// Jobs are copied on the way in and out so callers never share state with the store.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*domain.GenerationJob
	byKey map[string]string
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:  make(map[string]*domain.GenerationJob),
		byKey: make(map[string]string),
	}
}

// Create persists a new job and indexes it by idempotency key.
func (s *JobStore) Create(_ context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if id, ok := s.byKey[job.IdempotencyKey]; ok && job.IdempotencyKey != "" {
		if active, ok := s.jobs[id]; ok && active.Status.IsActive() {
			return domain.ErrAlreadyExists
		}
	}
	job.Version = 1
	s.jobs[job.ID] = job.Clone()
	if job.IdempotencyKey != "" {
		s.byKey[job.IdempotencyKey] = job.ID
	}
	return nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(_ context.Context, id string) (*domain.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// GetByIdempotencyKey returns the job for key while it is queued or running.
func (s *JobStore) GetByIdempotencyKey(_ context.Context, key string) (*domain.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	job, ok := s.jobs[id]
	if !ok || !job.Status.IsActive() {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// Update overwrites an existing job and bumps its version.
func (s *JobStore) Update(_ context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Version = prev.Version + 1
	s.jobs[job.ID] = job.Clone()
	return nil
}

// List returns jobs for a product, newest first. Empty productID lists all jobs.
func (s *JobStore) List(_ context.Context, productID string) ([]domain.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.GenerationJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if productID != "" && job.ProductID != productID {
			continue
		}
		result = append(result, *job.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
