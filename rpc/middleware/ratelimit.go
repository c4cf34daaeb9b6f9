package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

// ThrottleRecorder is told about every rejected request.
type ThrottleRecorder interface {
	RecordThrottle(route, reason string)
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles each client independently. Authenticated callers are
// keyed by account, anonymous ones by address.
type RateLimiter struct {
	limit    RateLimit
	recorder ThrottleRecorder
	idleTTL  time.Duration

	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
	lastGC   time.Time
}

func NewRateLimiter(limit RateLimit, recorder ThrottleRecorder) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		recorder: recorder,
		idleTTL:  5 * time.Minute,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

// Enabled reports whether the limiter enforces anything.
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.limit.RatePerSecond > 0
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Enabled() {
			next.ServeHTTP(w, req)
			return
		}
		if !r.obtainLimiter(clientID(req)).Allow() {
			if r.recorder != nil {
				r.recorder.RecordThrottle(req.URL.Path, "rate_limit")
			}
			w.Header().Set("Retry-After", "1")
			WriteError(w, http.StatusTooManyRequests, "RateLimited", "")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clockNow()
	if now.Sub(r.lastGC) >= r.idleTTL {
		for key, entry := range r.visitors {
			if now.Sub(entry.lastSeen) >= r.idleTTL {
				delete(r.visitors, key)
			}
		}
		r.lastGC = now
	}
	entry, ok := r.visitors[id]
	if ok {
		entry.lastSeen = now
		return entry.limiter
	}
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(r.limit.RatePerSecond), burst), lastSeen: now}
	r.visitors[id] = entry
	return entry.limiter
}

func clientID(r *http.Request) string {
	if caller, ok := CallerFrom(r.Context()); ok {
		return caller.Hex()
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
