package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterSweepSize = 1024
)

type RateLimitConfig struct {
	IPPerMinute       int
	IPBurst           int
	TerminalPerMinute int
	TerminalBurst     int
}

// RateLimiter keeps one token bucket per client IP and one per
// authenticated terminal.
type RateLimiter struct {
	ipLimiter       *keyedLimiter
	terminalLimiter *keyedLimiter
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		ipLimiter:       newKeyedLimiter(cfg.IPPerMinute, cfg.IPBurst),
		terminalLimiter: newKeyedLimiter(cfg.TerminalPerMinute, cfg.TerminalBurst),
	}
}

// Middleware limits by client IP and runs before authentication.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip != "" && !l.ipLimiter.allow(ip) {
			writeError(w, requestIDFromRequest(r), http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TerminalMiddleware limits by the authenticated terminal and must run
// inside the auth middleware.
func (l *RateLimiter) TerminalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if terminal, ok := terminalFromContext(r.Context()); ok && !l.terminalLimiter.allow(terminal.ID) {
			writeError(w, requestIDFromRequest(r), http.StatusTooManyRequests, "rate_limited", "too many scans from this terminal")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type keyedLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(perMinute, burst int) *keyedLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &keyedLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *keyedLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= limiterSweepSize {
			l.sweep(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *keyedLimiter) sweep(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
