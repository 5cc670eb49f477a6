package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/HammerMeetNail/campussafe/internal/handlers"
	"github.com/HammerMeetNail/campussafe/internal/logging"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
)

// responseRecorder wraps http.ResponseWriter to capture status code and size.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// RequestLogger logs every request and records it in the HTTP metrics.
type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	if logger == nil {
		logger = logging.Default
	}
	return &RequestLogger{logger: logger}
}

func (l *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		route := routeLabel(r)
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, statusClass(recorder.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(duration.Seconds())

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      recorder.statusCode,
			"size":        recorder.size,
			"duration_ms": duration.Milliseconds(),
			"remote_addr": GetClientIP(r),
		}
		if user := handlers.GetUserFromContext(r.Context()); user != nil {
			fields["user_id"] = user.ID.String()
		}

		switch {
		case recorder.statusCode >= 500:
			l.logger.Error("HTTP request", fields)
		case recorder.statusCode >= 400:
			l.logger.Warn("HTTP request", fields)
		default:
			l.logger.Info("HTTP request", fields)
		}
	})
}

// routeLabel uses the matched ServeMux pattern so path parameters do not
// explode metric cardinality.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
