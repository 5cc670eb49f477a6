package middleware

import (
	"net/http"
	"strings"
)

// CacheControl marks API responses as private and uncacheable by default.
// Handlers serving static reference data, such as safety tips, overwrite
// the header themselves.
type CacheControl struct{}

func NewCacheControl() *CacheControl {
	return &CacheControl{}
}

func (c *CacheControl) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/"):
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
		case r.URL.Path == "/health" || strings.HasPrefix(r.URL.Path, "/health/"):
			w.Header().Set("Cache-Control", "no-cache")
		default:
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}
