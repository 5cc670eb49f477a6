package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/HammerMeetNail/campussafe/internal/handlers"
	"github.com/HammerMeetNail/campussafe/internal/logging"
)

// WindowCounter counts hits for key in the current fixed window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter is a fixed-window counter over INCR and EXPIRE.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// UserOrIPKey buckets authenticated requests by user and the rest by client
// IP.
func UserOrIPKey(r *http.Request) string {
	if user := handlers.GetUserFromContext(r.Context()); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + GetClientIP(r)
}

// IPKey buckets by client IP only.
func IPKey(r *http.Request) string {
	return "ip:" + GetClientIP(r)
}

// RateLimiter enforces limit requests per window. Redis is the shared
// counter; when it is missing or failing, a per-process token bucket with
// the same average rate takes over.
type RateLimiter struct {
	counter WindowCounter
	limit   int
	window  time.Duration
	prefix  string
	keyFunc KeyFunc
	now     func() time.Time

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

func NewRateLimiter(counter WindowCounter, limit int, window time.Duration, prefix string, keyFunc KeyFunc) *RateLimiter {
	if keyFunc == nil {
		keyFunc = UserOrIPKey
	}
	return &RateLimiter{
		counter:  counter,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFunc:  keyFunc,
		now:      time.Now,
		fallback: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.prefix + rl.keyFunc(r)
		now := rl.now()
		reset := now.Truncate(rl.window).Add(rl.window)

		allowed, remaining := rl.allow(r.Context(), key, now)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retry := int(reset.Sub(now).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string, now time.Time) (bool, int) {
	if rl.counter != nil {
		windowKey := key + ":" + strconv.FormatInt(now.Truncate(rl.window).Unix(), 10)
		count, err := rl.counter.Hit(ctx, windowKey, rl.window)
		if err == nil {
			remaining := rl.limit - int(count)
			if remaining < 0 {
				remaining = 0
			}
			return int(count) <= rl.limit, remaining
		}
		logging.Warn("Rate limiter falling back to in-memory bucket", map[string]interface{}{
			"error": err.Error(),
		})
	}

	limiter := rl.localLimiter(key)
	if !limiter.AllowN(now, 1) {
		return false, 0
	}
	return true, int(limiter.TokensAt(now))
}

func (rl *RateLimiter) localLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.fallback[key]
	if !ok {
		every := rate.Every(rl.window / time.Duration(max(rl.limit, 1)))
		limiter = rate.NewLimiter(every, rl.limit)
		rl.fallback[key] = limiter
	}
	return limiter
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
