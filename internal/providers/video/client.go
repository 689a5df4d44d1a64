package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"mentorapi/internal/infra"
)

const (
	defaultBaseURL       = "https://api.dev.runwayml.com"
	defaultAPIVersion    = "2024-11-06"
	defaultModel         = "veo3.1"
	defaultSubmitTimeout = 20 * time.Second
	defaultStatusTimeout = 15 * time.Second
	maxResponseBytes     = 1 << 20
)

type Options struct {
	APIKey        string
	BaseURL       string
	APIVersion    string
	DefaultModel  string
	HTTPClient    *http.Client
	SubmitTimeout time.Duration
	StatusTimeout time.Duration
	Logger        *infra.Logger
}

// Client talks to the hosted text-to-video API. It holds no job state.
type Client struct {
	apiKey        string
	baseURL       string
	apiVersion    string
	defaultModel  string
	http          *http.Client
	submitTimeout time.Duration
	statusTimeout time.Duration
	logger        *infra.Logger
}

type submitPayload struct {
	PromptText string `json:"promptText"`
	Model      string `json:"model"`
	Ratio      string `json:"ratio"`
	Duration   int    `json:"duration"`
	Audio      bool   `json:"audio"`
}

type submitResponse struct {
	ID     string `json:"id"`
	TaskID string `json:"taskId"`
}

func NewClient(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	model := strings.TrimSpace(opts.DefaultModel)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = defaultSubmitTimeout
	}
	statusTimeout := opts.StatusTimeout
	if statusTimeout <= 0 {
		statusTimeout = defaultStatusTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:        key,
		baseURL:       base,
		apiVersion:    version,
		defaultModel:  model,
		http:          client,
		submitTimeout: submitTimeout,
		statusTimeout: statusTimeout,
		logger:        logger,
	}, nil
}

// Resolve applies the client's default model plus duration and ratio coercion.
func (c *Client) Resolve(req SubmitRequest) Submission {
	return Resolve(req, c.defaultModel)
}

// Submit creates a provider task and returns its id. It makes exactly one
// attempt; failures come back as *SubmissionError.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	sub := c.Resolve(req)
	if len(sub.Corrections) > 0 {
		c.logger.Warn().
			Strs("corrections", sub.Corrections).
			Msg("video: submission parameters coerced")
	}

	body, err := json.Marshal(submitPayload{
		PromptText: sub.Prompt,
		Model:      sub.Model,
		Ratio:      sub.Ratio,
		Duration:   sub.DurationSeconds,
		Audio:      sub.Audio,
	})
	if err != nil {
		return "", &SubmissionError{Err: fmt.Errorf("encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/text_to_video", bytes.NewReader(body))
	if err != nil {
		return "", &SubmissionError{Err: fmt.Errorf("build request: %w", err)}
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Err: errors.New(errorSummary(raw))}
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	taskID := strings.TrimSpace(firstNonEmpty(out.ID, out.TaskID))
	if taskID == "" {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Err: ErrMissingTaskID}
	}

	c.logger.Info().
		Str("task_id", taskID).
		Str("model", sub.Model).
		Str("ratio", sub.Ratio).
		Int("duration", sub.DurationSeconds).
		Dur("latency", time.Since(start)).
		Msg("video: task submitted")
	return taskID, nil
}

// FetchStatus reads the current state of a provider task. Transport, HTTP
// and decode failures come back as *StatusFetchError.
func (c *Client) FetchStatus(ctx context.Context, taskID string) (*StatusSnapshot, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, &StatusFetchError{Err: ErrMissingTaskID}
	}
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.taskURL(taskID), nil)
	if err != nil {
		return nil, &StatusFetchError{TaskID: taskID, Err: err}
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &StatusFetchError{TaskID: taskID, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &StatusFetchError{TaskID: taskID, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusFetchError{TaskID: taskID, StatusCode: resp.StatusCode, Err: errors.New(errorSummary(raw))}
	}

	snap, err := ParseStatus(raw)
	if err != nil {
		return nil, &StatusFetchError{TaskID: taskID, StatusCode: resp.StatusCode, Err: err}
	}
	if snap.TaskID == "" {
		snap.TaskID = taskID
	}
	if snap.Phase == PhaseUnknown {
		c.logger.Warn().
			Str("task_id", taskID).
			Str("status", snap.RawStatus).
			Msg("video: unrecognised status label")
	}
	return snap, nil
}

// Cancel asks the provider to stop a task. It reports whether the provider
// accepted the request; failures are logged and never returned.
func (c *Client) Cancel(ctx context.Context, taskID string) bool {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.taskURL(taskID), nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("task_id", taskID).Msg("video: cancel request build failed")
		return false
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("task_id", taskID).Msg("video: cancel request failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("task_id", taskID).Msg("video: cancel rejected")
		return false
	}
	return true
}

func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
	r.Header.Set("X-Runway-Version", c.apiVersion)
	r.Header.Set("Accept", "application/json")
}

func (c *Client) taskURL(taskID string) string {
	return c.baseURL + "/v1/tasks/" + url.PathEscape(taskID)
}

// errorSummary pulls a human readable message out of an error body without
// echoing large payloads into logs.
const maxSummaryBytes = 200

func errorSummary(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if _, msg := parseTaskError(body.Error); msg != "" {
			return msg
		}
		if strings.TrimSpace(body.Message) != "" {
			return strings.TrimSpace(body.Message)
		}
	}
	text := truncateRunes(strings.TrimSpace(string(raw)), maxSummaryBytes)
	if text == "" {
		return "empty response body"
	}
	return text
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
