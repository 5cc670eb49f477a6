package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/HammerMeetNail/campussafe/internal/metrics"
)

// BasicAuth guards a handler with a single username and password. An empty
// username leaves the handler open.
func BasicAuth(username, password, realm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if username == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !ok || !userOK || !passOK {
				metrics.AuthRejections.WithLabelValues("metrics_basic_auth").Inc()
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
