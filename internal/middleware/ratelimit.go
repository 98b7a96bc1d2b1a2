package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// trackedIPLimit caps the visitor map so an address scan cannot grow it
// without bound.
const trackedIPLimit = 100000

type visitor struct {
	tokens  float64
	touched time.Time
}

// RateLimiter applies a per-IP token bucket: burst tokens up front,
// refilled at rate tokens per second.
type RateLimiter struct {
	rate  float64
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:     rate,
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
}

// Handler rejects over-limit requests with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		left, wait, ok := rl.allow(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))
		if !ok {
			w.Header().Set("Retry-After", strconv.FormatFloat(math.Ceil(wait), 'f', 0, 64))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) (left int, wait float64, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v := rl.visitors[ip]
	if v == nil {
		if len(rl.visitors) >= trackedIPLimit {
			return 0, 1.0 / rl.rate, false
		}
		v = &visitor{tokens: float64(rl.burst)}
		rl.visitors[ip] = v
	} else {
		v.tokens = min(v.tokens+now.Sub(v.touched).Seconds()*rl.rate, float64(rl.burst))
	}
	v.touched = now

	if v.tokens < 1 {
		return 0, (1 - v.tokens) / rl.rate, false
	}
	v.tokens--
	return int(v.tokens), 0, true
}

// StartCleanup evicts visitors idle longer than maxIdle on the given
// interval. The returned func stops the sweeper.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, v := range rl.visitors {
		if v.touched.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// Len reports how many IPs currently hold a bucket.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// clientIP uses RemoteAddr only. Forwarded-for headers are spoofable
// and would let a caller dodge the limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
