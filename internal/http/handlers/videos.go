package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mentorapi/internal/domain"
	"mentorapi/internal/videogen"
)

const maxCallbackBytes = 1 << 20

type videoGenerateRequest struct {
	Prompt          string `json:"prompt"`
	Model           string `json:"model"`
	Ratio           string `json:"ratio"`
	DurationSeconds *int   `json:"duration_seconds"`
	Audio           bool   `json:"audio"`
}

type waitResponse struct {
	Job      *videogen.JobView `json:"job"`
	TimedOut bool              `json:"timed_out"`
}

func (a *App) decodeGenerate(w http.ResponseWriter, r *http.Request) (videogen.GenerationRequest, bool) {
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return videogen.GenerationRequest{}, false
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "prompt is required")
		return videogen.GenerationRequest{}, false
	}
	return videogen.GenerationRequest{
		Prompt:          req.Prompt,
		Model:           req.Model,
		AspectRatio:     req.Ratio,
		DurationSeconds: req.DurationSeconds,
		Audio:           req.Audio,
		OwnerID:         a.currentUserID(r),
	}, true
}

// VideosGenerate submits a job and returns its handle without waiting.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeGenerate(w, r)
	if !ok {
		return
	}
	handle, err := a.Videos.RequestGeneration(r.Context(), req)
	if err != nil {
		if handle != nil && errors.Is(err, domain.ErrProviderFailure) {
			a.json(w, http.StatusBadGateway, map[string]any{
				"job_id": handle.JobID,
				"state":  handle.State,
				"error":  errorDetail{Code: domain.ErrorCodeSubmissionFailed, Message: err.Error()},
			})
			return
		}
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, handle)
}

// VideosGenerateAndWait submits a job and blocks until it is terminal or the
// wait budget is exhausted.
func (a *App) VideosGenerateAndWait(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeGenerate(w, r)
	if !ok {
		return
	}
	view, err := a.Videos.RequestAndWait(r.Context(), req)
	a.writeWaitResult(w, r, view, err)
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	view, err := a.Videos.GetStatus(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) VideoWait(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	view, err := a.Videos.WaitForJob(r.Context(), jobID)
	a.writeWaitResult(w, r, view, err)
}

func (a *App) VideoResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	url, err := a.Videos.ResultURL(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"job_id": jobID, "result_url": url})
}

func (a *App) VideoCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	accepted, err := a.Videos.Cancel(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"job_id": jobID, "cancel_accepted": accepted})
}

// VideoCallback accepts a status body pushed by the provider. Unknown task
// ids are acknowledged so the provider does not keep retrying them.
func (a *App) VideoCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	view, err := a.Videos.HandleCallback(r.Context(), body)
	if errors.Is(err, domain.ErrNotFound) {
		a.json(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) writeWaitResult(w http.ResponseWriter, r *http.Request, view *videogen.JobView, err error) {
	switch {
	case err == nil:
		a.json(w, http.StatusOK, view)
	case errors.Is(err, domain.ErrWaitTimeout) && view != nil:
		a.json(w, http.StatusGatewayTimeout, waitResponse{Job: view, TimedOut: true})
	default:
		a.fail(w, r, err)
	}
}
