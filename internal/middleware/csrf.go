package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfTokenLen   = 32
	csrfMaxAge     = 12 * 60 * 60
)

// CSRFMiddleware applies double-submit protection to browser sessions.
// Requests that authenticate with a bearer token carry no ambient
// credential and are exempt.
type CSRFMiddleware struct {
	secure bool
	exempt map[string]bool
}

func NewCSRFMiddleware(secure bool, exemptPaths ...string) *CSRFMiddleware {
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = true
	}
	return &CSRFMiddleware{secure: secure, exempt: exempt}
}

func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			m.ensureToken(w, r)
			next.ServeHTTP(w, r)
			return
		}

		if m.exempt[r.URL.Path] || usesBearer(r) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := r.Cookie(sessionCookieName); err != nil {
			// No session cookie means nothing for a forged request to ride on.
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "CSRF token missing")
			return
		}
		headerToken := r.Header.Get(csrfHeaderName)
		if headerToken == "" {
			writeError(w, http.StatusForbidden, "CSRF token header missing")
			return
		}
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(headerToken)) != 1 {
			writeError(w, http.StatusForbidden, "CSRF token mismatch")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func usesBearer(r *http.Request) bool {
	scheme, _, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	return ok && strings.EqualFold(scheme, "Bearer")
}

func (m *CSRFMiddleware) ensureToken(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		w.Header().Set(csrfHeaderName, cookie.Value)
		return
	}

	token, err := generateCSRFToken()
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfMaxAge,
		HttpOnly: false,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set(csrfHeaderName, token)
}

func generateCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}
