package ratelimit

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/clock"
)

func newTestLimiter(cfg AdvisorLimiterConfig) (*AdvisorLimiter, *clock.Mock) {
	mock := clock.NewMock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewAdvisorLimiter(cfg, mock, zap.NewNop()), mock
}

func TestAdvisorLimiter_MinuteWindow(t *testing.T) {
	l, mock := newTestLimiter(AdvisorLimiterConfig{MaxRequestsPerMinute: 2})

	for i := 0; i < 2; i++ {
		release, err := l.Acquire()
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
		release()
	}

	if _, err := l.Acquire(); !errors.Is(err, ErrMinuteLimitExceeded) {
		t.Fatalf("expected ErrMinuteLimitExceeded, got %v", err)
	}

	// One call refills every 30 seconds.
	mock.Advance(31 * time.Second)
	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("expected a refilled call, got %v", err)
	}
	release()

	stats := l.Stats()
	if stats.Accepted != 3 {
		t.Errorf("expected 3 accepted, got %d", stats.Accepted)
	}
	if stats.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", stats.Rejected)
	}
}

func TestAdvisorLimiter_RollsBackOnLaterWindow(t *testing.T) {
	l, _ := newTestLimiter(AdvisorLimiterConfig{MaxRequestsPerMinute: 5, MaxRequestsPerHour: 1})

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release()

	_, err = l.Acquire()
	if !errors.Is(err, ErrHourLimitExceeded) {
		t.Fatalf("expected ErrHourLimitExceeded, got %v", err)
	}
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected error to wrap ErrBudgetExceeded")
	}

	remaining := l.Stats().Remaining
	if remaining["minute"] != 4 {
		t.Errorf("expected 4 minute calls left after the rollback, got %v", remaining["minute"])
	}
	if remaining["hour"] != 0 {
		t.Errorf("expected 0 hour calls left, got %v", remaining["hour"])
	}
	if _, ok := remaining["day"]; ok {
		t.Errorf("expected no day window when it is not configured")
	}
}

func TestAdvisorLimiter_DayWindow(t *testing.T) {
	l, mock := newTestLimiter(AdvisorLimiterConfig{MaxRequestsPerDay: 1})

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release()

	mock.Advance(time.Hour)
	if _, err := l.Acquire(); !errors.Is(err, ErrDayLimitExceeded) {
		t.Fatalf("expected ErrDayLimitExceeded, got %v", err)
	}

	mock.Advance(24 * time.Hour)
	if _, err := l.Acquire(); err != nil {
		t.Fatalf("expected the day budget to refill, got %v", err)
	}
}

func TestAdvisorLimiter_Concurrency(t *testing.T) {
	l, _ := newTestLimiter(AdvisorLimiterConfig{MaxConcurrent: 1})

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := l.Stats().InFlight; got != 1 {
		t.Errorf("expected 1 in flight, got %d", got)
	}

	if _, err := l.Acquire(); !errors.Is(err, ErrTooManyConcurrent) {
		t.Fatalf("expected ErrTooManyConcurrent, got %v", err)
	}

	release()
	release()
	if got := l.Stats().InFlight; got != 0 {
		t.Errorf("expected 0 in flight after release, got %d", got)
	}

	second, err := l.Acquire()
	if err != nil {
		t.Fatalf("expected a free slot after release, got %v", err)
	}
	second()
}

func TestAdvisorLimiter_ZeroConfigIsUnlimited(t *testing.T) {
	l, _ := newTestLimiter(AdvisorLimiterConfig{})

	for i := 0; i < 100; i++ {
		release, err := l.Acquire()
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
		release()
	}
	if len(l.Stats().Remaining) != 0 {
		t.Errorf("expected no windows, got %v", l.Stats().Remaining)
	}
}

func TestDefaultAdvisorLimiterConfig(t *testing.T) {
	cfg := DefaultAdvisorLimiterConfig()
	if cfg.MaxRequestsPerMinute <= 0 || cfg.MaxRequestsPerHour <= 0 || cfg.MaxRequestsPerDay <= 0 {
		t.Errorf("expected every window to be enabled, got %+v", cfg)
	}
	if cfg.MaxConcurrent <= 0 {
		t.Errorf("expected a concurrency cap, got %d", cfg.MaxConcurrent)
	}
}
