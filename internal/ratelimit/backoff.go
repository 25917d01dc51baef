package ratelimit

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"
)

// BackoffConfig configures exponential backoff behavior.
type BackoffConfig struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps every delay, including a server supplied Retry-After.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries int

	// Jitter randomizes each delay by up to this fraction, e.g. 0.2 = +/- 20%.
	Jitter float64

	// RetryableStatusCodes lists upstream HTTP statuses worth retrying.
	RetryableStatusCodes []int
}

// DefaultBackoffConfig returns defaults for calls to a hosted model API.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   2,
		Jitter:       0.2,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// StatusError is an error carrying the HTTP status of an upstream response.
type StatusError interface {
	error
	HTTPStatus() int
}

// RetryAfterError is an error carrying a server requested delay.
type RetryAfterError interface {
	error
	RetryDelay() time.Duration
}

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) error

// Backoff retries operations with exponential delays.
type Backoff struct {
	config BackoffConfig
	logger *zap.Logger
}

// NewBackoff creates a new Backoff.
func NewBackoff(config BackoffConfig, logger *zap.Logger) *Backoff {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Backoff{
		config: config,
		logger: logger,
	}
}

// Execute runs op until it succeeds, returns a non-retryable error, the
// retries run out, or ctx is done. The last operation error is returned
// unchanged so callers can still inspect it.
func (b *Backoff) Execute(ctx context.Context, op Operation) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				b.logger.Info("operation succeeded after retry", zap.Int("attempts", attempt+1))
			}
			return nil
		}

		if !b.shouldRetry(ctx, err, attempt) {
			return err
		}

		delay := b.delay(err, attempt)
		b.logger.Warn("operation failed, retrying with backoff",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// shouldRetry retries upstream statuses from the configured list and network
// failures. Context errors and everything else are final.
func (b *Backoff) shouldRetry(ctx context.Context, err error, attempt int) bool {
	if attempt >= b.config.MaxRetries || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return slices.Contains(b.config.RetryableStatusCodes, statusErr.HTTPStatus())
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func (b *Backoff) delay(err error, attempt int) time.Duration {
	var retryAfter RetryAfterError
	if errors.As(err, &retryAfter) && retryAfter.RetryDelay() > 0 {
		return min(retryAfter.RetryDelay(), b.config.MaxDelay)
	}

	d := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(attempt))
	if b.config.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.config.Jitter
	}
	if d > float64(b.config.MaxDelay) {
		d = float64(b.config.MaxDelay)
	}
	return time.Duration(d)
}
