package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines a fixed-window limit for one endpoint class.
type RateLimitConfig struct {
	// Limit is the maximum number of requests allowed per window.
	Limit int
	// Window is the duration of the fixed window.
	Window time.Duration
}

// Endpoint class limits. Submission is the tightest since each request can
// consume one of a user's three attempts.
var (
	SubmissionLimit   = RateLimitConfig{Limit: 5, Window: 15 * time.Minute}
	VerificationLimit = RateLimitConfig{Limit: 10, Window: 5 * time.Minute}
	StatusLimit       = RateLimitConfig{Limit: 20, Window: time.Minute}
	UploadLimit       = RateLimitConfig{Limit: 3, Window: time.Hour}
)

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter tracks request counts per client IP using fixed windows.
// Expired windows are swept periodically so the map does not grow without
// bound.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a limiter and starts its background sweep.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go rl.sweep(5 * time.Minute)
	return rl
}

// Close stops the background sweep goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, w := range rl.windows {
				if now.After(w.resetAt) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow records one request for key under cfg and reports whether it fits in
// the current window. When denied it returns the seconds until the window
// resets.
func (rl *RateLimiter) allow(key string, cfg RateLimitConfig) (bool, int) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = &rateWindow{count: 1, resetAt: now.Add(cfg.Window)}
		return true, 0
	}
	if w.count >= cfg.Limit {
		retry := int(w.resetAt.Sub(now).Seconds()) + 1
		return false, retry
	}
	w.count++
	return true, 0
}

// Limit returns a middleware enforcing cfg for the named endpoint class.
// Clients sharing an IP share a window; the class name keeps windows for
// different endpoint classes independent.
func (rl *RateLimiter) Limit(class string, cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := class + "|" + clientIP(r)
			ok, retry := rl.allow(key, cfg)
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded","message":"Too many requests. Please try again in %d seconds."}`, retry)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the client address, preferring proxy headers so limits
// apply to the real client behind a reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
