package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"bullion/pkg/platform/httputil"
	"bullion/pkg/requestcontext"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// OperatorLimiter allows each operator at most limit requests in any sliding
// window. State is in process.
type OperatorLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewOperatorLimiter(limit int, window time.Duration) *OperatorLimiter {
	return &OperatorLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records one request for key if it fits in the window.
func (l *OperatorLimiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := prune(l.windows[key], now.Add(-l.window))
	d := Decision{Limit: l.limit, ResetAt: now.Add(l.window)}
	if len(stamps) > 0 {
		d.ResetAt = stamps[0].Add(l.window)
	}
	if len(stamps) >= l.limit {
		l.windows[key] = stamps
		return d
	}
	stamps = append(stamps, now)
	l.windows[key] = stamps
	d.Allowed = true
	d.Remaining = l.limit - len(stamps)
	d.ResetAt = stamps[0].Add(l.window)
	return d
}

// prune drops timestamps at or before cutoff. stamps is sorted.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == len(stamps) {
		return nil
	}
	return stamps[i:]
}

type rateLimitedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit rejects requests over the operator's budget with 429. It must run
// after Operator.
func RateLimit(l *OperatorLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(requestcontext.Actor(r.Context()))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				retry := max(1, int(time.Until(d.ResetAt).Seconds()+0.5))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httputil.WriteJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
					Error:      "rate_limit_exceeded",
					Message:    "too many requests for this operator, retry later",
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
