// Package http provides the control-plane HTTP surface: authenticated
// endpoints the booking platform calls to trigger an immediate send, plus
// unauthenticated liveness and metrics endpoints.
package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"bookbell/internal/handler/http/respond"
)

// SecretHeader carries the shared secret on notify requests.
const SecretHeader = "X-Notify-Secret"

// SharedSecretAuth rejects requests whose secret header does not match.
// The comparison is constant-time; the header value never reaches logs.
func SharedSecretAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				respond.Error(w, http.StatusUnauthorized, errors.New("invalid or missing secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
