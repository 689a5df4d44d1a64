package domain

import "time"

// JobState enumerates generation job lifecycle states.
type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
	JobStateCancelled JobState = "CANCELLED"
)

// TerminalStates lists the states from which no transition is permitted.
var TerminalStates = []JobState{JobStateSucceeded, JobStateFailed, JobStateCancelled}

// IsTerminal reports whether the state accepts no further writes.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known states.
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// Error codes recorded on jobs that did not succeed.
const (
	ErrorCodeSubmissionFailed  = "SUBMISSION_FAILED"
	ErrorCodeProviderFailed    = "PROVIDER_FAILED"
	ErrorCodeProviderCancelled = "PROVIDER_CANCELLED"
	ErrorCodeMissingResult     = "MISSING_RESULT"
	ErrorCodeCancelled         = "CANCELLED"
)

// GenerationJob is the durable record of one text-to-video request.
type GenerationJob struct {
	ID                string
	ProviderTaskID    *string
	OwnerID           *string
	PromptOriginal    string
	PromptEffective   string
	Model             string
	AspectRatio       string
	DurationSeconds   int
	AudioEnabled      bool
	State             JobState
	ProgressPercent   *int
	ResultURL         *string
	ErrorCode         *string
	ErrorMessage      *string
	CancelRequestedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (j *GenerationJob) Clone() *GenerationJob {
	if j == nil {
		return nil
	}
	out := *j
	out.ProviderTaskID = cloneString(j.ProviderTaskID)
	out.OwnerID = cloneString(j.OwnerID)
	out.ResultURL = cloneString(j.ResultURL)
	out.ErrorCode = cloneString(j.ErrorCode)
	out.ErrorMessage = cloneString(j.ErrorMessage)
	if j.ProgressPercent != nil {
		p := *j.ProgressPercent
		out.ProgressPercent = &p
	}
	if j.CancelRequestedAt != nil {
		t := *j.CancelRequestedAt
		out.CancelRequestedAt = &t
	}
	return &out
}

// TerminalUpdate carries the fields written when a job reaches a terminal state.
// Exactly one of ResultURL or the error pair is expected to be set.
type TerminalUpdate struct {
	State        JobState
	ResultURL    string
	ErrorCode    string
	ErrorMessage string
}

// Succeeded builds a terminal update for a successful job.
func Succeeded(resultURL string) TerminalUpdate {
	return TerminalUpdate{State: JobStateSucceeded, ResultURL: resultURL}
}

// Failed builds a terminal update for a failed job.
func Failed(code, message string) TerminalUpdate {
	return TerminalUpdate{State: JobStateFailed, ErrorCode: code, ErrorMessage: message}
}

// Cancelled builds a terminal update for a job stopped on request.
func Cancelled(message string) TerminalUpdate {
	return TerminalUpdate{State: JobStateCancelled, ErrorCode: ErrorCodeCancelled, ErrorMessage: message}
}

// Apply writes the update onto job in memory. Stores use it to keep their
// in-memory representation consistent with what was persisted.
func (u TerminalUpdate) Apply(job *GenerationJob, at time.Time) {
	job.State = u.State
	job.UpdatedAt = at
	if u.State == JobStateSucceeded {
		url := u.ResultURL
		job.ResultURL = &url
		job.ErrorCode = nil
		job.ErrorMessage = nil
		return
	}
	job.ResultURL = nil
	code, msg := u.ErrorCode, u.ErrorMessage
	job.ErrorCode = &code
	job.ErrorMessage = &msg
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
