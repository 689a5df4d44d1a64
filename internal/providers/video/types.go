package video

import (
	"errors"
	"fmt"
)

// Phase is the normalized provider status.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
	PhaseUnknown   Phase = "unknown"
)

// SubmitRequest is what callers ask for. Zero values are replaced with
// defaults by Resolve.
type SubmitRequest struct {
	Prompt          string
	Model           string
	AspectRatio     string
	DurationSeconds *int
	Audio           bool
}

// Submission is a SubmitRequest after coercion; it is what goes on the wire.
type Submission struct {
	Prompt          string
	Model           string
	Ratio           string
	DurationSeconds int
	Audio           bool
	Corrections     []string
}

// StatusSnapshot is one normalized provider status response. It only lives
// for the duration of a single reconciliation.
type StatusSnapshot struct {
	TaskID       string
	RawStatus    string
	Phase        Phase
	Progress     *int
	ResultURL    string
	ErrorCode    string
	ErrorMessage string
}

var (
	ErrMissingAPIKey = errors.New("video: api key is required")
	ErrMissingTaskID = errors.New("video: response carried no task id")
)

// SubmissionError reports that the provider rejected or never received a
// submission. Submissions are not retried.
type SubmissionError struct {
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("video: submit failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("video: submit failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StatusFetchError reports a transport or parse failure while polling.
// Callers treat it as "not yet terminal".
type StatusFetchError struct {
	TaskID     string
	StatusCode int
	Err        error
}

func (e *StatusFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("video: status %s failed with status %d: %v", e.TaskID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("video: status %s failed: %v", e.TaskID, e.Err)
}

func (e *StatusFetchError) Unwrap() error { return e.Err }
