package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/HammerMeetNail/campussafe/internal/logging"
)

const healthCheckTimeout = 5 * time.Second

type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports on the backing stores. Probe failures are logged,
// never echoed to the caller.
type HealthHandler struct {
	checks map[string]HealthChecker
}

func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{
		checks: map[string]HealthChecker{
			"postgres": db,
			"redis":    redis,
		},
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

func (h *HealthHandler) probe(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, checker := range h.checks {
		if err := checker.Health(ctx); err != nil {
			healthy = false
			results[name] = "unhealthy"
			logging.Warn("Health check failed", map[string]interface{}{
				"check": name,
				"error": err.Error(),
			})
			continue
		}
		results[name] = "healthy"
	}
	return results, healthy
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.probe(r.Context())

	response := HealthResponse{
		Status:    "healthy",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.probe(r.Context()); !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
