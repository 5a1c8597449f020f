package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// windowLimiter counts requests per client in fixed windows.
type windowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	used    int
	resetAt time.Time
}

func newWindowLimiter(limit int, per time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		window:  per,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// take records one request for client and reports how many remain in the
// current window. ok is false once the budget is spent.
func (l *windowLimiter) take(client string) (remaining int, reset time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, found := l.windows[client]
	if !found || !now.Before(w.resetAt) {
		l.expire(now)
		w = &window{resetAt: now.Add(l.window)}
		l.windows[client] = w
	}
	reset = w.resetAt.Sub(now)
	if w.used >= l.limit {
		return 0, reset, false
	}
	w.used++
	return l.limit - w.used, reset, true
}

// expire drops finished windows. Callers hold mu.
func (l *windowLimiter) expire(now time.Time) {
	for client, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, client)
		}
	}
}

// RateLimit allows limit requests per client IP in each window of length per.
// A non-positive limit disables the check.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return rateLimit(newWindowLimiter(limit, per))
}

func rateLimit(l *windowLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := remoteIP(r)
			if client == "" {
				client = r.RemoteAddr
			}
			remaining, reset, ok := l.take(client)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"kind":"rate_limited","message":"Too many try-on requests. Please wait a moment."}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
