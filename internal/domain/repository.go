package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for generation jobs.
//
// Write methods that report a bool return false when the row was already
// terminal (or, for MarkSubmitted, no longer PENDING) and nothing changed.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	GetByProviderTaskID(ctx context.Context, taskID string) (*GenerationJob, error)
	MarkSubmitted(ctx context.Context, jobID, taskID string, at time.Time) (bool, error)
	UpdateProgress(ctx context.Context, jobID string, progress int, at time.Time) (bool, error)
	UpdateTerminal(ctx context.Context, jobID string, update TerminalUpdate, at time.Time) (bool, error)
	MarkCancelRequested(ctx context.Context, jobID string, at time.Time) error
	// MarkChecked records that the provider was asked about a RUNNING job.
	// It does not count as a transition and leaves UpdatedAt alone.
	MarkChecked(ctx context.Context, jobID string, at time.Time) error
	// ListActive returns RUNNING jobs whose last provider check (or last
	// update, if never checked) is older than checkedBefore, least recently
	// checked first.
	ListActive(ctx context.Context, checkedBefore time.Time, limit int) ([]GenerationJob, error)
	Ping(ctx context.Context) error
}
