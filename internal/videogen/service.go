package videogen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mentorapi/internal/domain"
	"mentorapi/internal/infra"
	"mentorapi/internal/providers/prompt"
	"mentorapi/internal/providers/video"
)

// PromptNormalizer rewrites prompts before submission. *prompt.Normalizer
// satisfies it.
type PromptNormalizer interface {
	NormalizeDetailed(ctx context.Context, text string) prompt.Result
}

// GenerationRequest is one caller request for a video.
type GenerationRequest struct {
	Prompt          string `json:"prompt"`
	Model           string `json:"model,omitempty"`
	AspectRatio     string `json:"ratio,omitempty"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	Audio           bool   `json:"audio"`
	OwnerID         string `json:"-"`
}

// JobHandle is returned by the asynchronous entry point.
type JobHandle struct {
	JobID string          `json:"job_id"`
	State domain.JobState `json:"state"`
}

type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobView is the caller-facing projection of a GenerationJob. Every terminal
// view carries exactly one of ResultURL or Error: Error is set for FAILED
// and also for CANCELLED, where its code is CANCELLED.
type JobView struct {
	JobID           string          `json:"job_id"`
	State           domain.JobState `json:"state"`
	ProviderTaskID  *string         `json:"provider_task_id,omitempty"`
	OwnerID         *string         `json:"owner_id,omitempty"`
	PromptOriginal  string          `json:"prompt_original"`
	PromptEffective string          `json:"prompt_effective"`
	Model           string          `json:"model"`
	AspectRatio     string          `json:"ratio"`
	DurationSeconds int             `json:"duration_seconds"`
	AudioEnabled    bool            `json:"audio"`
	ProgressPercent *int            `json:"progress_percent,omitempty"`
	ResultURL       *string         `json:"result_url,omitempty"`
	Error           *JobError       `json:"error,omitempty"`
	CancelRequested bool            `json:"cancel_requested"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewJobView projects job for callers.
func NewJobView(job *domain.GenerationJob) *JobView {
	if job == nil {
		return nil
	}
	view := &JobView{
		JobID:           job.ID,
		State:           job.State,
		ProviderTaskID:  job.ProviderTaskID,
		OwnerID:         job.OwnerID,
		PromptOriginal:  job.PromptOriginal,
		PromptEffective: job.PromptEffective,
		Model:           job.Model,
		AspectRatio:     job.AspectRatio,
		DurationSeconds: job.DurationSeconds,
		AudioEnabled:    job.AudioEnabled,
		ProgressPercent: job.ProgressPercent,
		ResultURL:       job.ResultURL,
		CancelRequested: job.CancelRequestedAt != nil,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	if job.ErrorCode != nil || job.ErrorMessage != nil {
		view.Error = &JobError{Code: domain.Deref(job.ErrorCode), Message: domain.Deref(job.ErrorMessage)}
	}
	return view
}

type ServiceOptions struct {
	Orchestrator *Orchestrator
	Store        domain.JobRepository
	Gateway      Gateway
	Normalizer   PromptNormalizer
	Logger       *infra.Logger
	Now          func() time.Time
	NewID        func() string
}

// Service is the entry point used by the HTTP layer.
type Service struct {
	orch       *Orchestrator
	store      domain.JobRepository
	gateway    Gateway
	normalizer PromptNormalizer
	logger     *infra.Logger
	now        func() time.Time
	newID      func() string
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Orchestrator == nil || opts.Store == nil || opts.Gateway == nil {
		return nil, errors.New("videogen: orchestrator, store and gateway are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		orch:       opts.Orchestrator,
		store:      opts.Store,
		gateway:    opts.Gateway,
		normalizer: opts.Normalizer,
		logger:     logger,
		now:        now,
		newID:      newID,
	}, nil
}

// RequestGeneration normalizes the prompt, persists a PENDING job and submits
// it. A submission failure returns the handle of the FAILED job together
// with the error.
func (s *Service) RequestGeneration(ctx context.Context, req GenerationRequest) (*JobHandle, error) {
	original := strings.TrimSpace(req.Prompt)
	if original == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidRequest)
	}

	effective := original
	if s.normalizer != nil {
		res := s.normalizer.NormalizeDetailed(ctx, original)
		effective = strings.TrimSpace(res.Text)
		if effective == "" {
			effective = original
		}
	}

	sub := s.gateway.Resolve(video.SubmitRequest{
		Prompt:          effective,
		Model:           req.Model,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
		Audio:           req.Audio,
	})

	now := s.now()
	job := &domain.GenerationJob{
		ID:              s.newID(),
		OwnerID:         domain.StringPtr(strings.TrimSpace(req.OwnerID)),
		PromptOriginal:  original,
		PromptEffective: effective,
		Model:           sub.Model,
		AspectRatio:     sub.Ratio,
		DurationSeconds: sub.DurationSeconds,
		AudioEnabled:    sub.Audio,
		State:           domain.JobStatePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Bool("translated", effective != original).
		Msg("videogen: job created")

	duration := sub.DurationSeconds
	submitted, err := s.orch.Submit(ctx, job, video.SubmitRequest{
		Prompt:          sub.Prompt,
		Model:           sub.Model,
		AspectRatio:     sub.Ratio,
		DurationSeconds: &duration,
		Audio:           sub.Audio,
	})
	if submitted == nil {
		if err == nil {
			err = errors.New("videogen: submission returned no job")
		}
		return &JobHandle{JobID: job.ID, State: job.State}, err
	}
	return &JobHandle{JobID: submitted.ID, State: submitted.State}, err
}

// GetStatus runs one poll-and-reconcile for a non-terminal job and returns
// its view.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*JobView, error) {
	job, err := s.orch.Refresh(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return NewJobView(job), nil
}

// WaitForJob blocks until jobID is terminal or the wait budget is spent.
// On timeout the current view is returned with domain.ErrWaitTimeout.
func (s *Service) WaitForJob(ctx context.Context, jobID string) (*JobView, error) {
	job, err := s.orch.Wait(ctx, jobID)
	return NewJobView(job), err
}

// RequestAndWait submits a job and waits for it. A provider-reported
// failure comes back as a FAILED view with a nil error; a timeout comes back
// as domain.ErrWaitTimeout.
func (s *Service) RequestAndWait(ctx context.Context, req GenerationRequest) (*JobView, error) {
	handle, err := s.RequestGeneration(ctx, req)
	if err != nil {
		if handle == nil {
			return nil, err
		}
		job, gerr := s.store.GetByID(context.WithoutCancel(ctx), handle.JobID)
		if gerr != nil {
			return nil, err
		}
		return NewJobView(job), err
	}
	return s.WaitForJob(ctx, handle.JobID)
}

// Cancel asks the provider to stop the job. It reports whether the provider
// accepted the request; the job itself changes only on a later status check.
func (s *Service) Cancel(ctx context.Context, jobID string) (bool, error) {
	return s.orch.Cancel(ctx, jobID)
}

// ResultURL refreshes the job and returns its result locator.
func (s *Service) ResultURL(ctx context.Context, jobID string) (string, error) {
	view, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return "", err
	}
	return ExtractResultURL(view)
}

// HandleCallback reconciles the job named by a status body pushed by the
// provider. Only the task id is taken from the body; the status applied is
// re-read from the provider.
func (s *Service) HandleCallback(ctx context.Context, body []byte) (*JobView, error) {
	snap, err := video.ParseStatus(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	s.logger.Debug().
		Str("task_id", snap.TaskID).
		Str("status", snap.RawStatus).
		Msg("videogen: provider callback received")
	job, err := s.orch.ReconcileTask(ctx, snap.TaskID)
	if err != nil {
		return nil, err
	}
	return NewJobView(job), nil
}

// Health reports whether the job store is reachable.
func (s *Service) Health(ctx context.Context) bool {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("videogen: store ping failed")
		return false
	}
	return true
}

// ExtractResultURL returns the locator of a SUCCEEDED view. Views that are
// not successfully finished yield domain.ErrNotReady; a SUCCEEDED view
// without a locator yields domain.ErrNotFound.
func ExtractResultURL(view *JobView) (string, error) {
	if view == nil {
		return "", domain.ErrNotFound
	}
	if view.State != domain.JobStateSucceeded {
		return "", fmt.Errorf("%w: job is %s", domain.ErrNotReady, view.State)
	}
	url := strings.TrimSpace(domain.Deref(view.ResultURL))
	if url == "" {
		return "", fmt.Errorf("%w: job succeeded without a result locator", domain.ErrNotFound)
	}
	return url, nil
}
