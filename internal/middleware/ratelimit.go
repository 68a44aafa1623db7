package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/qaderichat/backend/internal/metrics"
	"github.com/qaderichat/backend/pkg/utils"
)

const (
	visitorIdle  = 10 * time.Minute
	sweepTrigger = 1024
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out a token bucket per identity.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	perMinute int
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewRateLimiter allows perMinute requests per identity with an equal burst.
// perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		perMinute: perMinute,
		metrics:   m,
		now:       time.Now,
	}
}

// Allow reports whether identity may make another request now.
func (rl *RateLimiter) Allow(identity string) bool {
	if rl == nil || rl.perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.visitors) >= sweepTrigger {
		for id, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorIdle {
				delete(rl.visitors, id)
			}
		}
	}

	v, ok := rl.visitors[identity]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute)}
		rl.visitors[identity] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(Identity(r)) {
			rl.metrics.RateLimitHit()
			w.Header().Set("Retry-After", "60")
			utils.RespondError(w, http.StatusTooManyRequests, "Too many requests, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Identity is the rate limiting key of r: its session key, or the client
// address when the request carries none.
func Identity(r *http.Request) string {
	if key := SessionKey(r.Context()); key != "" {
		return "session:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
