package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mentorapi/internal/domain"
)

// generationJobRecord is the GORM row shape for generation_jobs.
type generationJobRecord struct {
	ID                string  `gorm:"primaryKey;size:36"`
	ProviderTaskID    *string `gorm:"uniqueIndex"`
	OwnerID           *string `gorm:"index"`
	PromptOriginal    string  `gorm:"not null"`
	PromptEffective   string  `gorm:"not null"`
	Model             string
	AspectRatio       string
	DurationSeconds   int
	AudioEnabled      bool
	State             string `gorm:"not null;index"`
	ProgressPercent   *int
	ResultURL         *string
	ErrorCode         *string
	ErrorMessage      *string
	CancelRequestedAt *time.Time
	LastCheckedAt     *time.Time `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time `gorm:"index"`
}

func (generationJobRecord) TableName() string { return "generation_jobs" }

// JobRepositoryGorm implements domain.JobRepository with GORM, used for the
// SQLite store.
type JobRepositoryGorm struct {
	db *gorm.DB
}

func NewJobRepositoryGorm(db *gorm.DB) *JobRepositoryGorm {
	return &JobRepositoryGorm{db: db}
}

// Migrate creates the generation_jobs table.
func (r *JobRepositoryGorm) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&generationJobRecord{})
}

func (r *JobRepositoryGorm) Create(ctx context.Context, job *domain.GenerationJob) error {
	rec := toRecord(job)
	err := r.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateOperation
	}
	return err
}

func (r *JobRepositoryGorm) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	return r.first(ctx, "id = ?", jobID)
}

func (r *JobRepositoryGorm) GetByProviderTaskID(ctx context.Context, taskID string) (*domain.GenerationJob, error) {
	return r.first(ctx, "provider_task_id = ?", taskID)
}

func (r *JobRepositoryGorm) MarkSubmitted(ctx context.Context, jobID, taskID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&generationJobRecord{}).
		Where("id = ?", jobID).
		Where("state = ?", string(domain.JobStatePending)).
		Where("provider_task_id IS NULL").
		Updates(map[string]interface{}{
			"provider_task_id": taskID,
			"state":            string(domain.JobStateRunning),
			"updated_at":       at.UTC(),
		})
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return false, domain.ErrDuplicateOperation
	}
	return result.RowsAffected > 0, result.Error
}

func (r *JobRepositoryGorm) UpdateProgress(ctx context.Context, jobID string, progress int, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&generationJobRecord{}).
		Where("id = ?", jobID).
		Where("state = ?", string(domain.JobStateRunning)).
		Where("(progress_percent IS NULL OR progress_percent < ?)", progress).
		Updates(map[string]interface{}{
			"progress_percent": progress,
			"updated_at":       at.UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *JobRepositoryGorm) UpdateTerminal(ctx context.Context, jobID string, update domain.TerminalUpdate, at time.Time) (bool, error) {
	if !update.State.IsTerminal() {
		return false, domain.ErrInvalidTransition
	}
	result := r.db.WithContext(ctx).
		Model(&generationJobRecord{}).
		Where("id = ?", jobID).
		Where("state NOT IN ?", terminalStateNames()).
		Updates(map[string]interface{}{
			"state":         string(update.State),
			"result_url":    domain.StringPtr(update.ResultURL),
			"error_code":    domain.StringPtr(update.ErrorCode),
			"error_message": domain.StringPtr(update.ErrorMessage),
			"updated_at":    at.UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *JobRepositoryGorm) MarkCancelRequested(ctx context.Context, jobID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&generationJobRecord{}).
		Where("id = ?", jobID).
		Where("cancel_requested_at IS NULL").
		Update("cancel_requested_at", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	_, err := r.GetByID(ctx, jobID)
	return err
}

func (r *JobRepositoryGorm) MarkChecked(ctx context.Context, jobID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&generationJobRecord{}).
		Where("id = ?", jobID).
		Where("state = ?", string(domain.JobStateRunning)).
		Update("last_checked_at", at.UTC()).Error
}

func (r *JobRepositoryGorm) ListActive(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.GenerationJob, error) {
	var records []generationJobRecord
	err := r.db.WithContext(ctx).
		Where("state = ?", string(domain.JobStateRunning)).
		Where("COALESCE(last_checked_at, updated_at) < ?", checkedBefore.UTC()).
		Order("COALESCE(last_checked_at, updated_at) ASC").
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	jobs := make([]domain.GenerationJob, 0, len(records))
	for i := range records {
		jobs = append(jobs, *records[i].toDomain())
	}
	return jobs, nil
}

func (r *JobRepositoryGorm) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *JobRepositoryGorm) first(ctx context.Context, query string, arg string) (*domain.GenerationJob, error) {
	var rec generationJobRecord
	err := r.db.WithContext(ctx).Where(query, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func toRecord(job *domain.GenerationJob) generationJobRecord {
	c := job.Clone()
	return generationJobRecord{
		ID:                c.ID,
		ProviderTaskID:    c.ProviderTaskID,
		OwnerID:           c.OwnerID,
		PromptOriginal:    c.PromptOriginal,
		PromptEffective:   c.PromptEffective,
		Model:             c.Model,
		AspectRatio:       c.AspectRatio,
		DurationSeconds:   c.DurationSeconds,
		AudioEnabled:      c.AudioEnabled,
		State:             string(c.State),
		ProgressPercent:   c.ProgressPercent,
		ResultURL:         c.ResultURL,
		ErrorCode:         c.ErrorCode,
		ErrorMessage:      c.ErrorMessage,
		CancelRequestedAt: c.CancelRequestedAt,
		CreatedAt:         c.CreatedAt.UTC(),
		UpdatedAt:         c.UpdatedAt.UTC(),
	}
}

func (rec *generationJobRecord) toDomain() *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:                rec.ID,
		ProviderTaskID:    rec.ProviderTaskID,
		OwnerID:           rec.OwnerID,
		PromptOriginal:    rec.PromptOriginal,
		PromptEffective:   rec.PromptEffective,
		Model:             rec.Model,
		AspectRatio:       rec.AspectRatio,
		DurationSeconds:   rec.DurationSeconds,
		AudioEnabled:      rec.AudioEnabled,
		State:             domain.JobState(rec.State),
		ProgressPercent:   rec.ProgressPercent,
		ResultURL:         rec.ResultURL,
		ErrorCode:         rec.ErrorCode,
		ErrorMessage:      rec.ErrorMessage,
		CancelRequestedAt: rec.CancelRequestedAt,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func terminalStateNames() []string {
	names := make([]string, 0, len(domain.TerminalStates))
	for _, s := range domain.TerminalStates {
		names = append(names, string(s))
	}
	return names
}

var _ domain.JobRepository = (*JobRepositoryGorm)(nil)
