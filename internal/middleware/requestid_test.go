package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent", incoming: "", keep: false},
		{name: "caller id kept", incoming: "edge-7f3a.01:b_2", keep: true},
		{name: "control characters replaced", incoming: "abc\r\nforged: 1", keep: false},
		{name: "spaces replaced", incoming: "two words", keep: false},
		{name: "oversized replaced", incoming: strings.Repeat("a", maxRequestIDLen+1), keep: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set("X-Request-ID", tc.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if got := rr.Header().Get("X-Request-ID"); got != seen {
				t.Fatalf("header %q does not match context %q", got, seen)
			}
			if tc.keep {
				if seen != tc.incoming {
					t.Fatalf("request id = %q, want %q", seen, tc.incoming)
				}
				return
			}
			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("expected generated uuid, got %q", seen)
			}
		})
	}
}
