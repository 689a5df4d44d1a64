package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"mentorapi/internal/domain"
)

// MemoryJobRepository keeps jobs in process memory. It applies the same
// conditional-write rules as the SQL stores and is used for local runs and tests.
type MemoryJobRepository struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.GenerationJob
	byTask  map[string]string
	checked map[string]time.Time
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs:    make(map[string]*domain.GenerationJob),
		byTask:  make(map[string]string),
		checked: make(map[string]time.Time),
	}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *domain.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return domain.ErrDuplicateOperation
	}
	if job.ProviderTaskID != nil {
		if _, taken := r.byTask[*job.ProviderTaskID]; taken {
			return domain.ErrDuplicateOperation
		}
		r.byTask[*job.ProviderTaskID] = job.ID
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryJobRepository) GetByID(_ context.Context, jobID string) (*domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryJobRepository) GetByProviderTaskID(_ context.Context, taskID string) (*domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTask[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.jobs[id].Clone(), nil
}

func (r *MemoryJobRepository) MarkSubmitted(_ context.Context, jobID, taskID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.State != domain.JobStatePending || job.ProviderTaskID != nil {
		return false, nil
	}
	if _, taken := r.byTask[taskID]; taken {
		return false, domain.ErrDuplicateOperation
	}
	job.ProviderTaskID = &taskID
	job.State = domain.JobStateRunning
	job.UpdatedAt = at
	r.byTask[taskID] = jobID
	return true, nil
}

func (r *MemoryJobRepository) UpdateProgress(_ context.Context, jobID string, progress int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.State != domain.JobStateRunning {
		return false, nil
	}
	if job.ProgressPercent != nil && *job.ProgressPercent >= progress {
		return false, nil
	}
	job.ProgressPercent = &progress
	job.UpdatedAt = at
	return true, nil
}

func (r *MemoryJobRepository) UpdateTerminal(_ context.Context, jobID string, update domain.TerminalUpdate, at time.Time) (bool, error) {
	if !update.State.IsTerminal() {
		return false, domain.ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.State.IsTerminal() {
		return false, nil
	}
	update.Apply(job, at)
	return true, nil
}

func (r *MemoryJobRepository) MarkCancelRequested(_ context.Context, jobID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.CancelRequestedAt == nil {
		job.CancelRequestedAt = &at
	}
	return nil
}

func (r *MemoryJobRepository) MarkChecked(_ context.Context, jobID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok && job.State == domain.JobStateRunning {
		r.checked[jobID] = at
	}
	return nil
}

func (r *MemoryJobRepository) ListActive(_ context.Context, checkedBefore time.Time, limit int) ([]domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.GenerationJob
	for _, job := range r.jobs {
		if job.State == domain.JobStateRunning && r.lastChecked(job).Before(checkedBefore) {
			out = append(out, *job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := r.lastChecked(&out[i]), r.lastChecked(&out[j])
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryJobRepository) Ping(context.Context) error { return nil }

// lastChecked mirrors COALESCE(last_checked_at, updated_at). Callers hold mu.
func (r *MemoryJobRepository) lastChecked(job *domain.GenerationJob) time.Time {
	if at, ok := r.checked[job.ID]; ok {
		return at
	}
	return job.UpdatedAt
}

var _ domain.JobRepository = (*MemoryJobRepository)(nil)
