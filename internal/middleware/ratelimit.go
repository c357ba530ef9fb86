package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter hands out one token bucket per user
type UserRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

// NewUserRateLimiter allows perMinute requests per user, with bursts of the same size
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	return &UserRateLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     perMinute,
		lastSweep: time.Now(),
	}
}

// Allow reports whether the key may make another request now
func (l *UserRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429. It keys on the
// authenticated user and falls back to the remote address.
func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := GetUserID(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}
		if !l.Allow(key) {
			log.Warn().Str("key", key).Str("path", r.URL.Path).Msg("Rate limit exceeded")
			respondError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
