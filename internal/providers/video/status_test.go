package video

import (
	"encoding/json"
	"testing"
)

func TestParseProgress(t *testing.T) {
	cases := []struct {
		raw   string
		want  int
		isNil bool
	}{
		{raw: `0.42`, want: 42},
		{raw: `42`, want: 42},
		{raw: `"0.42"`, want: 42},
		{raw: `"42%"`, want: 42},
		{raw: `1.0`, want: 100},
		{raw: `1`, want: 1},
		{raw: `0`, want: 0},
		{raw: `0.005`, want: 1},
		{raw: `150`, want: 100},
		{raw: `-3`, want: 0},
		{raw: `null`, isNil: true},
		{raw: ``, isNil: true},
		{raw: `"soon"`, isNil: true},
	}
	for _, tc := range cases {
		got := ParseProgress(json.RawMessage(tc.raw))
		if tc.isNil {
			if got != nil {
				t.Fatalf("ParseProgress(%s) = %d, want nil", tc.raw, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Fatalf("ParseProgress(%s) = %v, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestPhaseOf(t *testing.T) {
	cases := map[string]Phase{
		"PENDING":     PhasePending,
		"throttled":   PhasePending,
		"RUNNING":     PhaseRunning,
		"in-progress": PhaseRunning,
		"SUCCEEDED":   PhaseSucceeded,
		"FAILED":      PhaseFailed,
		"CANCELLED":   PhaseCancelled,
		"canceled":    PhaseCancelled,
		"REVIEWING":   PhaseUnknown,
		"":            PhaseUnknown,
	}
	for in, want := range cases {
		if got := PhaseOf(in); got != want {
			t.Fatalf("PhaseOf(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseStatusFailureShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
		msg  string
	}{
		{name: "object", body: `{"status":"FAILED","error":{"code":"SAFETY","message":"blocked"}}`, code: "SAFETY", msg: "blocked"},
		{name: "numeric_code", body: `{"status":"FAILED","error":{"code":400,"message":"bad"}}`, code: "400", msg: "bad"},
		{name: "string", body: `{"status":"FAILED","error":"quota exceeded"}`, msg: "quota exceeded"},
		{name: "flat", body: `{"status":"FAILED","failure":"timed out","failureCode":"INTERNAL"}`, code: "INTERNAL", msg: "timed out"},
		{name: "none", body: `{"status":"FAILED"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := ParseStatus([]byte(tc.body))
			if err != nil {
				t.Fatalf("ParseStatus returned error: %v", err)
			}
			if snap.Phase != PhaseFailed {
				t.Fatalf("phase = %s", snap.Phase)
			}
			if snap.ErrorCode != tc.code || snap.ErrorMessage != tc.msg {
				t.Fatalf("error = %q/%q, want %q/%q", snap.ErrorCode, snap.ErrorMessage, tc.code, tc.msg)
			}
		})
	}
}

func TestParseLocator(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: `"https://a"`, want: "https://a"},
		{raw: `["", "https://b"]`, want: "https://b"},
		{raw: `[{"url":"https://c"}]`, want: "https://c"},
		{raw: `[{"href":"https://d"}, "https://e"]`, want: "https://d"},
		{raw: `{"uri":"https://f"}`, want: "https://f"},
		{raw: `[]`, want: ""},
		{raw: `null`, want: ""},
		{raw: `42`, want: ""},
	}
	for _, tc := range cases {
		if got := ParseLocator(json.RawMessage(tc.raw)); got != tc.want {
			t.Fatalf("ParseLocator(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
