package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const secret = "hook-secret"
	const body = `{"id":"task-1","status":"SUCCEEDED"}`

	tests := []struct {
		name      string
		signature string
		status    int
	}{
		{name: "valid", signature: sign(secret, body), status: http.StatusOK},
		{name: "missing", signature: "", status: http.StatusUnauthorized},
		{name: "wrong secret", signature: sign("other", body), status: http.StatusUnauthorized},
		{name: "tampered body", signature: sign(secret, body+" "), status: http.StatusUnauthorized},
		{name: "not hex", signature: "sha256=zz", status: http.StatusUnauthorized},
		{name: "no scheme", signature: strings.TrimPrefix(sign(secret, body), "sha256="), status: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := VerifySignature(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				seen = string(b)
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/v1/videos/callbacks", strings.NewReader(body))
			if tc.signature != "" {
				req.Header.Set("X-Signature", tc.signature)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			if tc.status == http.StatusOK && seen != body {
				t.Fatalf("handler saw body %q, want %q", seen, body)
			}
			if tc.status != http.StatusOK && seen != "" {
				t.Fatalf("handler ran for rejected request")
			}
		})
	}
}
