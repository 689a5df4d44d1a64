package videogen

import (
	"fmt"

	"mentorapi/internal/domain"
	"mentorapi/internal/providers/video"
)

type transitionKind int

const (
	transitionNone transitionKind = iota
	transitionProgress
	transitionTerminal
)

// transition is what one status snapshot asks the store to do to one job.
type transition struct {
	kind     transitionKind
	progress int
	update   domain.TerminalUpdate
	// synthesized marks a failure whose message the provider did not supply.
	synthesized bool
}

const (
	msgMissingResult     = "provider reported success without a result locator"
	msgCancelledByClient = "generation cancelled on request"
	msgProviderCancelled = "provider cancelled the task"
)

// applySnapshot decides the transition for job given snap. It has no side
// effects; terminal jobs and jobs that were never submitted always yield
// transitionNone, so re-applying a snapshot is safe.
func applySnapshot(job *domain.GenerationJob, snap *video.StatusSnapshot) transition {
	if job == nil || snap == nil || job.State != domain.JobStateRunning {
		return transition{kind: transitionNone}
	}

	switch snap.Phase {
	case video.PhaseSucceeded:
		if snap.ResultURL == "" {
			return transition{
				kind:   transitionTerminal,
				update: domain.Failed(domain.ErrorCodeMissingResult, msgMissingResult),
			}
		}
		return transition{kind: transitionTerminal, update: domain.Succeeded(snap.ResultURL)}

	case video.PhaseFailed:
		code := snap.ErrorCode
		if code == "" {
			code = domain.ErrorCodeProviderFailed
		}
		msg := snap.ErrorMessage
		synthesized := msg == ""
		if synthesized {
			msg = fmt.Sprintf("video generation failed at provider (status %s)", snap.RawStatus)
		}
		return transition{
			kind:        transitionTerminal,
			update:      domain.Failed(code, msg),
			synthesized: synthesized,
		}

	case video.PhaseCancelled:
		if job.CancelRequestedAt != nil {
			msg := snap.ErrorMessage
			if msg == "" {
				msg = msgCancelledByClient
			}
			return transition{kind: transitionTerminal, update: domain.Cancelled(msg)}
		}
		msg := snap.ErrorMessage
		if msg == "" {
			msg = msgProviderCancelled
		}
		return transition{
			kind:   transitionTerminal,
			update: domain.Failed(domain.ErrorCodeProviderCancelled, msg),
		}
	}

	if snap.Progress == nil {
		return transition{kind: transitionNone}
	}
	if job.ProgressPercent != nil && *snap.Progress <= *job.ProgressPercent {
		return transition{kind: transitionNone}
	}
	return transition{kind: transitionProgress, progress: *snap.Progress}
}
