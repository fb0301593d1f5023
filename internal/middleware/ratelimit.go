package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a per-client-IP token bucket. A bucket of size max refills
// at max tokens per window, so a client gets a burst of max requests and then
// one request every window/max.
//
// Buckets idle for longer than one window are full again and are swept
// lazily, so memory stays proportional to the number of recent clients.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	window    time.Duration
	message   string
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows max requests per window per IP. message is returned
// in the 429 body.
func NewRateLimiter(max int, window time.Duration, message string) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		window:   window,
		message:  message,
		now:      time.Now,
	}
}

// AuthRateLimiter is the limiter for signup, login and social auth: 5 per 15 minutes.
func AuthRateLimiter() *RateLimiter {
	return NewRateLimiter(5, 15*time.Minute, "Too many authentication attempts, please try again later.")
}

// APIRateLimiter is the limiter for everything under /api: 100 per 15 minutes.
func APIRateLimiter() *RateLimiter {
	return NewRateLimiter(100, 15*time.Minute, "Too many requests, please try again later.")
}

// reserve takes a token for ip and returns how long the caller must wait
// when none is available.
func (rl *RateLimiter) reserve(ip string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.window {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.window {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay
	}
	return 0
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait := rl.reserve(clientIP(r)); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": rl.message,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
