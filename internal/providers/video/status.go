package video

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type taskResponse struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"taskId"`
	Status      string          `json:"status"`
	Progress    json.RawMessage `json:"progress"`
	Output      json.RawMessage `json:"output"`
	Error       json.RawMessage `json:"error"`
	Failure     string          `json:"failure"`
	FailureCode string          `json:"failureCode"`
}

type taskError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

var phaseByLabel = map[string]Phase{
	"PENDING":     PhasePending,
	"QUEUED":      PhasePending,
	"THROTTLED":   PhasePending,
	"RUNNING":     PhaseRunning,
	"IN_PROGRESS": PhaseRunning,
	"PROCESSING":  PhaseRunning,
	"SUCCEEDED":   PhaseSucceeded,
	"COMPLETED":   PhaseSucceeded,
	"FAILED":      PhaseFailed,
	"ERROR":       PhaseFailed,
	"CANCELLED":   PhaseCancelled,
	"CANCELED":    PhaseCancelled,
	"ABORTED":     PhaseCancelled,
}

// PhaseOf maps a raw provider label onto a Phase.
func PhaseOf(label string) Phase {
	key := strings.ToUpper(strings.TrimSpace(label))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if p, ok := phaseByLabel[key]; ok {
		return p
	}
	return PhaseUnknown
}

// ParseStatus decodes a task status body. It is shared by polling and by the
// provider callback endpoint.
func ParseStatus(body []byte) (*StatusSnapshot, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty status body")
	}
	var resp taskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if strings.TrimSpace(resp.Status) == "" {
		return nil, errors.New("status label missing")
	}

	snap := &StatusSnapshot{
		TaskID:    strings.TrimSpace(firstNonEmpty(resp.ID, resp.TaskID)),
		RawStatus: resp.Status,
		Phase:     PhaseOf(resp.Status),
		Progress:  ParseProgress(resp.Progress),
		ResultURL: ParseLocator(resp.Output),
	}
	snap.ErrorCode, snap.ErrorMessage = parseTaskError(resp.Error)
	if snap.ErrorCode == "" {
		snap.ErrorCode = strings.TrimSpace(resp.FailureCode)
	}
	if snap.ErrorMessage == "" {
		snap.ErrorMessage = strings.TrimSpace(resp.Failure)
	}
	return snap, nil
}

// ParseProgress accepts a 0–1 fraction or a 0–100 percent, as a JSON number
// or numeric string, and returns a clamped integer percent. Literals with a
// decimal point at or below 1 are fractions; anything else is a percent.
func ParseProgress(raw json.RawMessage) *int {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(unquoted), "%"))
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	fractional := strings.ContainsAny(text, ".eE")
	if fractional && value <= 1 {
		value *= 100
	}
	pct := int(math.Round(value))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return &pct
}

func parseTaskError(raw json.RawMessage) (string, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", ""
	}
	if trimmed[0] == '"' {
		var msg string
		if err := json.Unmarshal(trimmed, &msg); err == nil {
			return "", strings.TrimSpace(msg)
		}
		return "", ""
	}
	var te taskError
	if err := json.Unmarshal(trimmed, &te); err != nil {
		return "", ""
	}
	return rawScalar(te.Code), strings.TrimSpace(te.Message)
}

// rawScalar renders a JSON string or number as plain text.
func rawScalar(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(trimmed)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
