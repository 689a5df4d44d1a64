package videogen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"mentorapi/internal/domain"
	"mentorapi/internal/infra"
)

const (
	defaultSweepSchedule   = "@every 30s"
	defaultSweepStaleAfter = 20 * time.Second
	defaultSweepBatchSize  = 50
)

type SweeperOptions struct {
	Orchestrator *Orchestrator
	Store        domain.JobRepository
	Schedule     string
	StaleAfter   time.Duration
	BatchSize    int
	Logger       *infra.Logger
	Now          func() time.Time
}

// Sweeper reconciles RUNNING jobs nobody is polling. Errors are absorbed into
// the jobs themselves or logged; nothing is raised to a caller.
type Sweeper struct {
	orch       *Orchestrator
	store      domain.JobRepository
	schedule   string
	staleAfter time.Duration
	batchSize  int
	logger     *infra.Logger
	now        func() time.Time

	cron    *cron.Cron
	running atomic.Bool
}

func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Orchestrator == nil || opts.Store == nil {
		return nil, errors.New("videogen: sweeper needs an orchestrator and a store")
	}
	s := &Sweeper{
		orch:       opts.Orchestrator,
		store:      opts.Store,
		schedule:   opts.Schedule,
		staleAfter: opts.StaleAfter,
		batchSize:  opts.BatchSize,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.schedule == "" {
		s.schedule = defaultSweepSchedule
	}
	if s.staleAfter <= 0 {
		s.staleAfter = defaultSweepStaleAfter
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultSweepBatchSize
	}
	if s.logger == nil {
		s.logger = infra.NopLogger()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// Sweep refreshes one batch of stale RUNNING jobs and returns how many were
// checked.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	jobs, err := s.store.ListActive(ctx, s.now().Add(-s.staleAfter), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list active jobs: %w", err)
	}
	checked := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		refreshed, err := s.orch.Refresh(ctx, job.ID)
		checked++
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("sweeper: refresh failed")
			continue
		}
		if refreshed.State != job.State {
			s.logger.Info().
				Str("job_id", job.ID).
				Str("state", string(refreshed.State)).
				Msg("sweeper: job reconciled")
		}
	}
	return checked, ctx.Err()
}

// Start schedules Sweep and returns once the scheduler is running. Runs
// that would overlap a sweep still in progress are skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cron.PrintfLogger(s.logger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Dur("stale_after", s.staleAfter).
		Int("batch", s.batchSize).
		Msg("sweeper: started")
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish or ctx to
// expire.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("sweeper: stop timed out with a sweep in flight")
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("sweeper: previous sweep still running, skipping")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	checked, err := s.Sweep(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("sweeper: sweep failed")
		return
	}
	if checked > 0 {
		s.logger.Debug().Int("checked", checked).Dur("took", time.Since(start)).Msg("sweeper: sweep done")
	}
}
