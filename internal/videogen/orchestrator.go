package videogen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mentorapi/internal/domain"
	"mentorapi/internal/infra"
	"mentorapi/internal/providers/video"
)

// Gateway is the provider surface the orchestrator drives. *video.Client
// satisfies it.
type Gateway interface {
	Resolve(req video.SubmitRequest) video.Submission
	Submit(ctx context.Context, req video.SubmitRequest) (string, error)
	FetchStatus(ctx context.Context, taskID string) (*video.StatusSnapshot, error)
	Cancel(ctx context.Context, taskID string) bool
}

// Locker serializes work on a single job. infra.KeyedMutex and
// infra.RedisLocker satisfy it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type OrchestratorOptions struct {
	Store   domain.JobRepository
	Gateway Gateway
	Locker  Locker
	Poll    PollPolicy
	Logger  *infra.Logger
	Now     func() time.Time
}

// Orchestrator owns the job state machine: submission, status reconciliation
// and the bounded wait loop. Every reconciliation of a job runs under that
// job's lock.
type Orchestrator struct {
	store   domain.JobRepository
	gateway Gateway
	locker  Locker
	poll    PollPolicy
	logger  *infra.Logger
	now     func() time.Time
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("videogen: store is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("videogen: gateway is required")
	}
	locker := opts.Locker
	if locker == nil {
		locker = infra.NewKeyedMutex()
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		store:   opts.Store,
		gateway: opts.Gateway,
		locker:  locker,
		poll:    opts.Poll.withDefaults(),
		logger:  logger,
		now:     now,
	}, nil
}

// Submit sends a persisted PENDING job to the provider exactly once. On
// success the job moves to RUNNING; on failure it is recorded as FAILED with
// SUBMISSION_FAILED and the gateway error is returned alongside the job.
// Failing to take the job lock is recorded the same way.
func (o *Orchestrator) Submit(ctx context.Context, job *domain.GenerationJob, req video.SubmitRequest) (*domain.GenerationJob, error) {
	if job.State != domain.JobStatePending || job.ProviderTaskID != nil {
		return nil, fmt.Errorf("submit job %s in state %s: %w", job.ID, job.State, domain.ErrInvalidTransition)
	}

	// Store writes must land even if the caller gives up mid-request.
	writeCtx := context.WithoutCancel(ctx)

	unlock, err := o.locker.Lock(ctx, job.ID)
	if err != nil {
		// Nothing was sent, so the job must not be left PENDING.
		o.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Msg("videogen: could not lock job for submission")
		failed, ferr := o.failSubmission(writeCtx, job.ID, "job lock unavailable: "+err.Error())
		if ferr != nil {
			return nil, ferr
		}
		return failed, fmt.Errorf("lock job %s: %w", job.ID, err)
	}
	defer unlock()

	taskID, submitErr := o.gateway.Submit(ctx, req)
	if submitErr != nil {
		o.logger.Error().
			Err(submitErr).
			Str("job_id", job.ID).
			Msg("videogen: submission failed")
		failed, err := o.failSubmission(writeCtx, job.ID, submitErr.Error())
		if err != nil {
			return nil, err
		}
		return failed, fmt.Errorf("%w: %w", domain.ErrProviderFailure, submitErr)
	}

	ok, err := o.store.MarkSubmitted(writeCtx, job.ID, taskID, o.now())
	if errors.Is(err, domain.ErrDuplicateOperation) {
		msg := fmt.Sprintf("provider task id %s already bound to another job", taskID)
		failed, ferr := o.failSubmission(writeCtx, job.ID, msg)
		if ferr != nil {
			return nil, ferr
		}
		return failed, fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
	}
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	if !ok {
		o.logger.Warn().Str("job_id", job.ID).Str("task_id", taskID).Msg("videogen: job left PENDING before submission was recorded")
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("task_id", taskID).
		Msg("videogen: job running")
	submitted, err := o.store.GetByID(writeCtx, job.ID)
	if err != nil {
		return nil, err
	}
	if submitted.CancelRequestedAt != nil {
		accepted := o.gateway.Cancel(writeCtx, taskID)
		o.logger.Info().
			Str("job_id", job.ID).
			Str("task_id", taskID).
			Bool("accepted", accepted).
			Msg("videogen: forwarding cancel requested during submission")
	}
	return submitted, nil
}

// failSubmission records SUBMISSION_FAILED on a job that never reached the
// provider and returns the stored job.
func (o *Orchestrator) failSubmission(ctx context.Context, jobID, msg string) (*domain.GenerationJob, error) {
	if _, err := o.store.UpdateTerminal(ctx, jobID, domain.Failed(domain.ErrorCodeSubmissionFailed, msg), o.now()); err != nil {
		return nil, fmt.Errorf("record submission failure: %w", err)
	}
	return o.store.GetByID(ctx, jobID)
}

// Refresh performs one status check and reconciliation. Status fetch errors
// are logged and swallowed: the job is returned as stored.
func (o *Orchestrator) Refresh(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	job, _, err := o.pollOnce(ctx, jobID)
	return job, err
}

// ReconcileTask reconciles the job bound to a provider task, typically after
// a provider callback. The callback body is only a hint: the status applied
// is always fetched from the provider, so a forged callback cannot move a
// job. A task this process does not know is dropped and reported as
// ErrNotFound.
func (o *Orchestrator) ReconcileTask(ctx context.Context, taskID string) (*domain.GenerationJob, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: no task id", domain.ErrInvalidRequest)
	}
	found, err := o.store.GetByProviderTaskID(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		o.logger.Warn().
			Str("task_id", taskID).
			Msg("videogen: status update for unknown task dropped")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	job, _, err := o.pollOnce(ctx, found.ID)
	return job, err
}

// Wait polls jobID until it reaches a terminal state or the attempt budget
// runs out. A FAILED or CANCELLED job is returned with a nil error; running
// out of attempts returns the current job with domain.ErrWaitTimeout and
// leaves its state alone. Cancelling ctx only stops local polling.
func (o *Orchestrator) Wait(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	var job *domain.GenerationJob
	for attempt := 1; attempt <= o.poll.MaxAttempts; attempt++ {
		current, outcome, err := o.pollOnce(ctx, jobID)
		if err != nil {
			if current == nil {
				current = job
			}
			return current, err
		}
		job = current
		if outcome != pollPending {
			o.logger.Debug().
				Str("job_id", jobID).
				Int("attempt", attempt).
				Str("outcome", outcome.String()).
				Msg("videogen: wait finished")
			return job, nil
		}
		if attempt == o.poll.MaxAttempts {
			break
		}

		timer := time.NewTimer(o.poll.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return job, ctx.Err()
		case <-timer.C:
		}
	}

	o.logger.Warn().
		Str("job_id", jobID).
		Int("attempts", o.poll.MaxAttempts).
		Dur("interval", o.poll.Interval).
		Msg("videogen: wait attempt budget exhausted")
	return job, domain.ErrWaitTimeout
}

// Cancel records the request and asks the provider to stop. It never moves
// the job to a terminal state by itself; the next reconciliation does.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) (bool, error) {
	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.State.IsTerminal() {
		return false, nil
	}
	if err := o.store.MarkCancelRequested(ctx, jobID, o.now()); err != nil {
		return false, err
	}
	// Reload: a submission finishing concurrently either sees the request
	// and forwards it itself, or has already bound the task id read here.
	if job, err = o.store.GetByID(ctx, jobID); err != nil {
		return false, err
	}
	if job.ProviderTaskID == nil {
		o.logger.Info().Str("job_id", jobID).Msg("videogen: cancel requested before submission completed")
		return false, nil
	}
	accepted := o.gateway.Cancel(ctx, *job.ProviderTaskID)
	o.logger.Info().
		Str("job_id", jobID).
		Str("task_id", *job.ProviderTaskID).
		Bool("accepted", accepted).
		Msg("videogen: cancel requested")
	return accepted, nil
}

func (o *Orchestrator) pollOnce(ctx context.Context, jobID string) (*domain.GenerationJob, pollOutcome, error) {
	unlock, err := o.locker.Lock(ctx, jobID)
	if err != nil {
		return nil, pollPending, err
	}
	defer unlock()

	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, pollPending, err
	}
	if job.State.IsTerminal() || job.ProviderTaskID == nil {
		return job, outcomeOf(job), nil
	}

	snap, err := o.gateway.FetchStatus(ctx, *job.ProviderTaskID)
	if cerr := o.store.MarkChecked(context.WithoutCancel(ctx), jobID, o.now()); cerr != nil {
		o.logger.Warn().Err(cerr).Str("job_id", jobID).Msg("videogen: could not record status check")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return job, pollPending, ctxErr
		}
		o.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Str("task_id", *job.ProviderTaskID).
			Msg("videogen: status check failed, keeping job state")
		return job, pollPending, nil
	}

	job, err = o.apply(context.WithoutCancel(ctx), job, snap)
	if err != nil {
		return nil, pollPending, err
	}
	return job, outcomeOf(job), nil
}

// apply persists the transition for snap. Callers hold the job lock.
func (o *Orchestrator) apply(ctx context.Context, job *domain.GenerationJob, snap *video.StatusSnapshot) (*domain.GenerationJob, error) {
	t := applySnapshot(job, snap)
	now := o.now()

	switch t.kind {
	case transitionProgress:
		ok, err := o.store.UpdateProgress(ctx, job.ID, t.progress, now)
		if err != nil {
			return nil, fmt.Errorf("update progress: %w", err)
		}
		if !ok {
			return o.store.GetByID(ctx, job.ID)
		}
		next := job.Clone()
		p := t.progress
		next.ProgressPercent = &p
		next.UpdatedAt = now
		return next, nil

	case transitionTerminal:
		ok, err := o.store.UpdateTerminal(ctx, job.ID, t.update, now)
		if err != nil {
			return nil, fmt.Errorf("update terminal state: %w", err)
		}
		if !ok {
			return o.store.GetByID(ctx, job.ID)
		}
		o.logTerminal(job, snap, t)
		next := job.Clone()
		t.update.Apply(next, now)
		return next, nil

	default:
		if snap.Phase == video.PhaseUnknown {
			o.logger.Warn().
				Str("job_id", job.ID).
				Str("status", snap.RawStatus).
				Msg("videogen: unrecognised provider status, treating as in progress")
		}
		return job, nil
	}
}

func (o *Orchestrator) logTerminal(job *domain.GenerationJob, snap *video.StatusSnapshot, t transition) {
	if t.update.State == domain.JobStateSucceeded {
		o.logger.Info().
			Str("job_id", job.ID).
			Str("state", string(t.update.State)).
			Msg("videogen: job succeeded")
		return
	}
	evt := o.logger.Warn().
		Str("job_id", job.ID).
		Str("task_id", domain.Deref(job.ProviderTaskID)).
		Str("state", string(t.update.State)).
		Str("error_code", t.update.ErrorCode).
		Str("status", snap.RawStatus)
	if t.synthesized || t.update.ErrorCode == domain.ErrorCodeMissingResult {
		// Keep enough context to reproduce the request later.
		evt = evt.
			Str("prompt_original", job.PromptOriginal).
			Str("prompt_effective", job.PromptEffective).
			Str("model", job.Model).
			Time("created_at", job.CreatedAt)
	}
	evt.Msg("videogen: job did not succeed")
}
