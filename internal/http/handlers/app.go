package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mentorapi/internal/domain"
	"mentorapi/internal/infra"
	"mentorapi/internal/middleware"
	"mentorapi/internal/videogen"
)

// VideoService is the façade the handlers call. *videogen.Service satisfies it.
type VideoService interface {
	RequestGeneration(ctx context.Context, req videogen.GenerationRequest) (*videogen.JobHandle, error)
	GetStatus(ctx context.Context, jobID string) (*videogen.JobView, error)
	WaitForJob(ctx context.Context, jobID string) (*videogen.JobView, error)
	RequestAndWait(ctx context.Context, req videogen.GenerationRequest) (*videogen.JobView, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
	ResultURL(ctx context.Context, jobID string) (string, error)
	HandleCallback(ctx context.Context, body []byte) (*videogen.JobView, error)
	Health(ctx context.Context) bool
}

type App struct {
	Videos VideoService
	Logger *infra.Logger
}

func NewApp(videos VideoService, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Videos: videos, Logger: logger}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{
		Code:      errCode,
		Message:   message,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}})
}

// fail maps a service error onto the HTTP error envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, r, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNotReady):
		a.error(w, r, http.StatusConflict, "not_ready", err.Error())
	case errors.Is(err, domain.ErrWaitTimeout):
		a.error(w, r, http.StatusGatewayTimeout, "timeout", "job did not finish within the wait budget")
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, r, http.StatusBadGateway, "provider_error", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.error(w, r, http.StatusServiceUnavailable, "cancelled", "request cancelled before the job finished")
	default:
		a.Logger.Error().
			Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: unhandled error")
		a.error(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
