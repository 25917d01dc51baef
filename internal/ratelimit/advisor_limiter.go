// Package ratelimit bounds and retries calls to the paid AI backend.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/jkindrix/zenquote/internal/clock"
)

// Errors returned when an advisor call is over budget. All of them wrap
// ErrBudgetExceeded.
var (
	ErrBudgetExceeded      = errors.New("advisor budget exceeded")
	ErrMinuteLimitExceeded = fmt.Errorf("%w: per-minute limit", ErrBudgetExceeded)
	ErrHourLimitExceeded   = fmt.Errorf("%w: per-hour limit", ErrBudgetExceeded)
	ErrDayLimitExceeded    = fmt.Errorf("%w: per-day limit", ErrBudgetExceeded)
	ErrTooManyConcurrent   = fmt.Errorf("%w: too many concurrent calls", ErrBudgetExceeded)
)

// AdvisorLimiterConfig holds the advisor call budget. A zero value disables
// that limit.
type AdvisorLimiterConfig struct {
	MaxRequestsPerMinute int
	MaxRequestsPerHour   int
	MaxRequestsPerDay    int
	MaxConcurrent        int
}

// DefaultAdvisorLimiterConfig returns the budget used when none is configured.
func DefaultAdvisorLimiterConfig() AdvisorLimiterConfig {
	return AdvisorLimiterConfig{
		MaxRequestsPerMinute: 20,
		MaxRequestsPerHour:   300,
		MaxRequestsPerDay:    2000,
		MaxConcurrent:        5,
	}
}

// window is a token bucket holding up to capacity calls. It refills one call
// every period/capacity, so a full period can admit up to twice the capacity
// when the bucket starts full.
type window struct {
	name    string
	limiter *rate.Limiter
	err     error
}

// AdvisorLimiter is a process-wide budget for advisor calls, independent of
// which client or session makes them.
type AdvisorLimiter struct {
	mu       sync.Mutex
	windows  []window
	slots    *semaphore.Weighted
	inFlight atomic.Int64
	clock    clock.Clock
	logger   *zap.Logger

	accepted atomic.Int64
	rejected atomic.Int64
}

// AdvisorLimiterStats is a snapshot of the limiter.
type AdvisorLimiterStats struct {
	Accepted  int64              `json:"accepted"`
	Rejected  int64              `json:"rejected"`
	InFlight  int64              `json:"in_flight"`
	Remaining map[string]float64 `json:"remaining"`
}

// NewAdvisorLimiter creates a limiter with the given budget. A nil clock uses
// the system time.
func NewAdvisorLimiter(cfg AdvisorLimiterConfig, c clock.Clock, logger *zap.Logger) *AdvisorLimiter {
	if c == nil {
		c = clock.New()
	}
	l := &AdvisorLimiter{
		clock:  c,
		logger: logger,
	}
	l.addWindow("minute", cfg.MaxRequestsPerMinute, time.Minute, ErrMinuteLimitExceeded)
	l.addWindow("hour", cfg.MaxRequestsPerHour, time.Hour, ErrHourLimitExceeded)
	l.addWindow("day", cfg.MaxRequestsPerDay, 24*time.Hour, ErrDayLimitExceeded)
	if cfg.MaxConcurrent > 0 {
		l.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return l
}

func (l *AdvisorLimiter) addWindow(name string, capacity int, period time.Duration, err error) {
	if capacity <= 0 {
		return
	}
	lim := rate.NewLimiter(rate.Every(period/time.Duration(capacity)), capacity)
	l.windows = append(l.windows, window{name: name, limiter: lim, err: err})
}

// Acquire takes one call from every window and one concurrency slot. It never
// blocks. On success the returned release func must be called once the call
// finishes. When any window is exhausted nothing is consumed.
func (l *AdvisorLimiter) Acquire() (release func(), err error) {
	if l.slots != nil && !l.slots.TryAcquire(1) {
		l.reject(ErrTooManyConcurrent)
		return nil, ErrTooManyConcurrent
	}

	if err := l.take(); err != nil {
		if l.slots != nil {
			l.slots.Release(1)
		}
		l.reject(err)
		return nil, err
	}

	l.accepted.Add(1)
	l.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.inFlight.Add(-1)
			if l.slots != nil {
				l.slots.Release(1)
			}
		})
	}, nil
}

// take reserves a token in every window, rolling back earlier reservations
// when a later window has none available.
func (l *AdvisorLimiter) take() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	taken := make([]*rate.Reservation, 0, len(l.windows))
	for _, w := range l.windows {
		r := w.limiter.ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			for _, prev := range taken {
				prev.CancelAt(now)
			}
			return w.err
		}
		taken = append(taken, r)
	}
	return nil
}

func (l *AdvisorLimiter) reject(err error) {
	l.rejected.Add(1)
	l.logger.Warn("advisor call rejected",
		zap.Error(err),
		zap.Int64("in_flight", l.inFlight.Load()),
	)
}

// Stats returns the current counters and the calls left in each window.
func (l *AdvisorLimiter) Stats() AdvisorLimiterStats {
	l.mu.Lock()
	now := l.clock.Now()
	remaining := make(map[string]float64, len(l.windows))
	for _, w := range l.windows {
		remaining[w.name] = w.limiter.TokensAt(now)
	}
	l.mu.Unlock()

	return AdvisorLimiterStats{
		Accepted:  l.accepted.Load(),
		Rejected:  l.rejected.Load(),
		InFlight:  l.inFlight.Load(),
		Remaining: remaining,
	}
}
