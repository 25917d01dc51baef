package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/jkindrix/zenquote/internal/errors"
)

// visitorIdleTTL is how long an idle client's bucket is kept.
const visitorIdleTTL = 10 * time.Minute

// RateLimitRecorder receives rate limit rejections. *metrics.Metrics implements it.
type RateLimitRecorder interface {
	RecordRateLimitHit(limiter string)
}

// RateLimitEventLogger receives rate limit business events.
type RateLimitEventLogger interface {
	RateLimitExceeded(ctx context.Context, limiterType string, identifier string)
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	name     string
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	visitors *cache.Cache
	recorder RateLimitRecorder
	events   RateLimitEventLogger
	logger   *zap.Logger
}

// NewRateLimiter allows perSecond requests per IP on average, with bursts of up to burst.
func NewRateLimiter(name string, perSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		name:     name,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: cache.New(visitorIdleTTL, visitorIdleTTL/2),
		logger:   logger,
	}
}

// SetRecorder sets the metrics recorder.
func (rl *RateLimiter) SetRecorder(r RateLimitRecorder) {
	rl.recorder = r
}

// SetEventLogger sets the business event logger.
func (rl *RateLimiter) SetEventLogger(e RateLimitEventLogger) {
	rl.events = e
}

// visitor returns the bucket for ip, creating it on first use.
func (rl *RateLimiter) visitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if x, found := rl.visitors.Get(ip); found {
		lim := x.(*rate.Limiter)
		rl.visitors.Set(ip, lim, cache.DefaultExpiration)
		return lim
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.visitors.Set(ip, lim, cache.DefaultExpiration)
	return lim
}

func (rl *RateLimiter) allow(ip string) bool {
	return rl.visitor(ip).Allow()
}

func (rl *RateLimiter) remaining(ip string) int {
	tokens := rl.visitor(ip).Tokens()
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

// retryAfter is the wait, in whole seconds, for one token to refill.
func (rl *RateLimiter) retryAfter() int {
	if rl.limit <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(rl.limit)))
}

// RateLimit returns HTTP middleware that rate limits requests.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			if !rl.allow(ip) {
				rl.logger.Warn("rate limit exceeded",
					zap.String("limiter", rl.name),
					zap.String("ip", ip),
					zap.String("path", r.URL.Path),
				)
				if rl.recorder != nil {
					rl.recorder.RecordRateLimitHit(rl.name)
				}
				if rl.events != nil {
					rl.events.RateLimitExceeded(r.Context(), rl.name, ip)
				}
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				writeError(w, apperrors.ErrRateLimited, http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.remaining(ip)))

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP address from a request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
