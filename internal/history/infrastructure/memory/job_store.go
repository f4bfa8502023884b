package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"paygo-cloud/internal/history/application"
)

// JobStore is an in-memory build job store.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]application.Job
}

// NewJobStore constructs a job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]application.Job)}
}

// CreateJob inserts a new job record.
func (s *JobStore) CreateJob(ctx context.Context, job *application.Job) error {
	_ = ctx
	if job == nil || job.ID == "" {
		return fmt.Errorf("memory: empty job id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("memory: duplicate job id %q", job.ID)
	}
	s.jobs[job.ID] = *job
	return nil
}

// UpdateJob overwrites an existing job record.
func (s *JobStore) UpdateJob(ctx context.Context, job *application.Job) error {
	_ = ctx
	if job == nil || job.ID == "" {
		return fmt.Errorf("memory: empty job id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return application.ErrJobNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

// GetJob returns the job with the given id.
func (s *JobStore) GetJob(ctx context.Context, id string) (*application.Job, error) {
	_ = ctx
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, application.ErrJobNotFound
	}
	return &job, nil
}

// ListJobs returns jobs newest first, up to limit when positive.
func (s *JobStore) ListJobs(ctx context.Context, limit int) ([]*application.Job, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]*application.Job, 0, len(s.jobs))
	for id := range s.jobs {
		job := s.jobs[id]
		out = append(out, &job)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
