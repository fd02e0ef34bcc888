// Package storage contains the in-memory job store used by unit tests and by
// single-process deployments that run without Postgres.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/formatforge/formatforge/internal/model"
	"github.com/formatforge/formatforge/internal/repository"
)

// MemoryStore implements repository.Store over a mutex-guarded map. It
// enforces the same state-machine guards as the Postgres repository so the
// dispatcher behaves identically against either backend.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

var _ repository.Store = (*MemoryStore)(nil)

// Create inserts a queued job.
func (m *MemoryStore) Create(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	job.Status = model.StatusQueued
	job.Progress = 0
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

// Get returns a copy of the record so callers cannot mutate internal state.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

// ClaimQueued performs the queued→processing compare-and-swap under the
// write lock.
func (m *MemoryStore) ClaimQueued(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := job.MarkProcessing(time.Now().UTC()); err != nil {
		return nil, repository.ErrNotClaimable
	}
	cp := *job
	return &cp, nil
}

// SetProgress advances progress on a processing job; anything else is a
// silent no-op, matching the SQL guard in the Postgres repository.
func (m *MemoryStore) SetProgress(_ context.Context, id string, pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	_ = job.SetProgress(pct, time.Now().UTC())
	return nil
}

// MarkCompleted finalizes a processing job with its result.
func (m *MemoryStore) MarkCompleted(_ context.Context, id string, res model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := job.Complete(res, time.Now().UTC()); err != nil {
		return repository.ErrNotClaimable
	}
	return nil
}

// MarkFailed finalizes the job with an error.
func (m *MemoryStore) MarkFailed(_ context.Context, id string, jobErr model.JobError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := job.Fail(jobErr, time.Now().UTC()); err != nil {
		return repository.ErrNotClaimable
	}
	return nil
}

// DeleteExpired removes jobs created before the cutoff and returns them.
func (m *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Job
	for id, job := range m.jobs {
		if job.CreatedAt.Before(cutoff) {
			out = append(out, *job)
			delete(m.jobs, id)
		}
	}
	return out, nil
}
