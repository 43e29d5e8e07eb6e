package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/upb/food-enrich/utils"
)

// idleLimiterTTL is how long an unused client limiter is kept
const idleLimiterTTL = 3 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	r        rate.Limit
	b        int
	logger   *zap.Logger
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewRateLimiter creates a limiter allowing rps requests per second per client
// with the given burst, and starts its idle-entry sweeper.
func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		r:        rate.Limit(rps),
		b:        burst,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop(time.Minute)
	return rl
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if v, ok := rl.limiters[ip]; ok {
		v.lastSeen = now
		return v.limiter
	}
	l := rate.NewLimiter(rl.r, rl.b)
	rl.limiters[ip] = &clientLimiter{limiter: l, lastSeen: now}
	return l
}

// Sweep drops limiters idle for longer than idleLimiterTTL and reports how many were removed
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, v := range rl.limiters {
		if now.Sub(v.lastSeen) > idleLimiterTTL {
			delete(rl.limiters, ip)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer close(rl.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := rl.Sweep(); n > 0 {
				rl.logger.Debug("rate limiter swept idle clients", zap.Int("removed", n))
			}
		case <-rl.stopCh:
			return
		}
	}
}

// Stop ends the sweeper goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	<-rl.done
}

// Handler is the middleware rejecting clients over their budget with 429
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.get(ip).Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("client", ip))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rl.r)))
			_ = utils.WriteTooManyRequests(w, "", map[string]interface{}{
				"rps":   float64(rl.r),
				"burst": rl.b,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 {
		return 1
	}
	secs := int(1 / float64(r))
	if secs < 1 {
		return 1
	}
	return secs
}

// clientIP strips the port from RemoteAddr; chi's RealIP has already
// applied proxy headers by the time this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
