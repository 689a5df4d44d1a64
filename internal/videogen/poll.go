package videogen

import (
	"time"

	"mentorapi/internal/domain"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultPollMaxAttempts = 60
)

// PollPolicy bounds the synchronous wait loop: a fixed delay between
// attempts and a hard cap on how many status checks are made.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = defaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultPollMaxAttempts
	}
	return p
}

// pollOutcome is the result of one wait-loop attempt. Fetch errors and
// non-terminal labels both map to pollPending.
type pollOutcome int

const (
	pollPending pollOutcome = iota
	pollSucceeded
	pollFailed
)

func (o pollOutcome) String() string {
	switch o {
	case pollSucceeded:
		return "succeeded"
	case pollFailed:
		return "failed"
	default:
		return "pending"
	}
}

func outcomeOf(job *domain.GenerationJob) pollOutcome {
	if job == nil {
		return pollPending
	}
	switch job.State {
	case domain.JobStateSucceeded:
		return pollSucceeded
	case domain.JobStateFailed, domain.JobStateCancelled:
		return pollFailed
	default:
		return pollPending
	}
}
