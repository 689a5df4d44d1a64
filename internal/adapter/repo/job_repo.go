package repo

import (
	"context"
	"fmt"
	"time"

	"mentorapi/internal/domain"
	"mentorapi/internal/infra"
	"mentorapi/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL through the
// marker-tagged statements in sqlinline.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// EnsureSchema creates the generation_jobs table and its indexes if missing.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateGenerationJobsTable); err != nil {
		return fmt.Errorf("ensure generation_jobs schema: %w", err)
	}
	return nil
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGenerationJob,
		job.ID,
		job.ProviderTaskID,
		job.OwnerID,
		job.PromptOriginal,
		job.PromptEffective,
		job.Model,
		job.AspectRatio,
		job.DurationSeconds,
		job.AudioEnabled,
		string(job.State),
		job.ProgressPercent,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return domain.ErrDuplicateOperation
	}
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	return scanGenerationJob(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJobByID, jobID))
}

// GetByProviderTaskID fetches the job bound to a provider task.
func (r *JobRepositoryPG) GetByProviderTaskID(ctx context.Context, taskID string) (*domain.GenerationJob, error) {
	return scanGenerationJob(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJobByTaskID, taskID))
}

func (r *JobRepositoryPG) MarkSubmitted(ctx context.Context, jobID, taskID string, at time.Time) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationJobSubmitted, jobID, taskID, at)
	if infra.IsUniqueViolation(err) {
		return false, domain.ErrDuplicateOperation
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress int, at time.Time) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateGenerationJobProgress, jobID, progress, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateTerminal writes a terminal state. It reports false without error when
// the row was already terminal.
func (r *JobRepositoryPG) UpdateTerminal(ctx context.Context, jobID string, update domain.TerminalUpdate, at time.Time) (bool, error) {
	if !update.State.IsTerminal() {
		return false, domain.ErrInvalidTransition
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateGenerationJobTerminal,
		jobID,
		string(update.State),
		domain.StringPtr(update.ResultURL),
		domain.StringPtr(update.ErrorCode),
		domain.StringPtr(update.ErrorMessage),
		at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepositoryPG) MarkCancelRequested(ctx context.Context, jobID string, at time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationJobCancelRequested, jobID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryPG) MarkChecked(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationJobChecked, jobID, at)
	return err
}

// ListActive returns RUNNING jobs not checked since checkedBefore, least
// recently checked first.
func (r *JobRepositoryPG) ListActive(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.GenerationJob, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectActiveGenerationJobs, checkedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanGenerationJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepositoryPG) Ping(ctx context.Context) error {
	var one int
	return r.sql.QueryRow(ctx, sqlinline.QPingGenerationJobs).Scan(&one)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGenerationJob(row rowScanner) (*domain.GenerationJob, error) {
	var (
		job   domain.GenerationJob
		state string
	)
	if err := row.Scan(
		&job.ID,
		&job.ProviderTaskID,
		&job.OwnerID,
		&job.PromptOriginal,
		&job.PromptEffective,
		&job.Model,
		&job.AspectRatio,
		&job.DurationSeconds,
		&job.AudioEnabled,
		&state,
		&job.ProgressPercent,
		&job.ResultURL,
		&job.ErrorCode,
		&job.ErrorMessage,
		&job.CancelRequestedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.State = domain.JobState(state)
	if !job.State.Valid() {
		return nil, fmt.Errorf("generation job %s has unknown state %q", job.ID, state)
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
