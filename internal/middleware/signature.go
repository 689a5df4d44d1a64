package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

const (
	signatureHeader = "X-Signature"
	signaturePrefix = "sha256="

	maxSignedBodyBytes = 1 << 20
)

// VerifySignature admits only requests whose X-Signature header is
// "sha256=<hex HMAC-SHA256 of the body>" under secret. The body is buffered
// and handed on unchanged.
func VerifySignature(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get(signatureHeader))
			if !strings.HasPrefix(header, signaturePrefix) {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing signature")
				return
			}
			got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes+1))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "bad_request", "unreadable body")
				return
			}
			if len(body) > maxSignedBodyBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "bad_request", "body too large")
				return
			}
			mac := hmac.New(sha256.New, key)
			mac.Write(body)
			if !hmac.Equal(got, mac.Sum(nil)) {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
