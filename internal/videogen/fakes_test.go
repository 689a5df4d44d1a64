package videogen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mentorapi/internal/adapter/repo"
	"mentorapi/internal/domain"
	"mentorapi/internal/providers/prompt"
	"mentorapi/internal/providers/video"
)

// fakeGateway replays scripted status responses. Once the script runs out
// the last entry repeats.
type fakeGateway struct {
	mu          sync.Mutex
	taskID      string
	submitErr   error
	submitted   []video.SubmitRequest
	script      []statusStep
	fetches     int
	fetched     []string
	cancelOK    bool
	cancelCalls []string
}

type statusStep struct {
	snap *video.StatusSnapshot
	err  error
}

func (g *fakeGateway) Resolve(req video.SubmitRequest) video.Submission {
	return video.Resolve(req, "veo3.1")
}

func (g *fakeGateway) Submit(_ context.Context, req video.SubmitRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted = append(g.submitted, req)
	if g.submitErr != nil {
		return "", g.submitErr
	}
	return g.taskID, nil
}

func (g *fakeGateway) FetchStatus(_ context.Context, taskID string) (*video.StatusSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.script) == 0 {
		return nil, &video.StatusFetchError{TaskID: taskID, Err: errors.New("no script")}
	}
	idx := g.fetches
	if idx >= len(g.script) {
		idx = len(g.script) - 1
	}
	g.fetches++
	g.fetched = append(g.fetched, taskID)
	step := g.script[idx]
	if step.err != nil {
		return nil, step.err
	}
	snap := *step.snap
	if snap.TaskID == "" {
		snap.TaskID = taskID
	}
	return &snap, nil
}

func (g *fakeGateway) Cancel(_ context.Context, taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelCalls = append(g.cancelCalls, taskID)
	return g.cancelOK
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

func (g *fakeGateway) fetchedTasks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fetched...)
}

type stubNormalizer struct {
	out string
}

func (n stubNormalizer) NormalizeDetailed(_ context.Context, text string) prompt.Result {
	if n.out == "" {
		return prompt.Result{Text: text}
	}
	return prompt.Result{Text: n.out, Translated: true}
}

func running(progress any) statusStep {
	snap := &video.StatusSnapshot{RawStatus: "RUNNING", Phase: video.PhaseRunning}
	if p, ok := progress.(int); ok {
		snap.Progress = &p
	}
	return statusStep{snap: snap}
}

func succeeded(url string) statusStep {
	return statusStep{snap: &video.StatusSnapshot{RawStatus: "SUCCEEDED", Phase: video.PhaseSucceeded, ResultURL: url}}
}

func failedStep(code, msg string) statusStep {
	return statusStep{snap: &video.StatusSnapshot{RawStatus: "FAILED", Phase: video.PhaseFailed, ErrorCode: code, ErrorMessage: msg}}
}

type harness struct {
	store   *repo.MemoryJobRepository
	gateway *fakeGateway
	orch    *Orchestrator
	svc     *Service
}

func newHarness(t *testing.T, gw *fakeGateway, norm PromptNormalizer) *harness {
	t.Helper()
	store := repo.NewMemoryJobRepository()
	orch, err := NewOrchestrator(OrchestratorOptions{
		Store:   store,
		Gateway: gw,
		Poll:    PollPolicy{Interval: time.Millisecond, MaxAttempts: 5},
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceOptions{
		Orchestrator: orch,
		Store:        store,
		Gateway:      gw,
		Normalizer:   norm,
	})
	require.NoError(t, err)
	return &harness{store: store, gateway: gw, orch: orch, svc: svc}
}

// runningJob stores a job that has already been submitted as taskID.
func (h *harness) runningJob(t *testing.T, taskID string) *domain.GenerationJob {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	job := &domain.GenerationJob{
		ID:              "job-" + taskID,
		PromptOriginal:  "a cat",
		PromptEffective: "a cat",
		State:           domain.JobStatePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, h.store.Create(ctx, job))
	ok, err := h.store.MarkSubmitted(ctx, job.ID, taskID, now)
	require.NoError(t, err)
	require.True(t, ok)
	stored, err := h.store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	return stored
}
