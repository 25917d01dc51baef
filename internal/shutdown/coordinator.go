// Package shutdown sequences the graceful stop of the server.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Phase orders shutdown steps. Steps in the same phase run concurrently.
type Phase int

const (
	// PhaseStopIntake marks the server not ready so balancers stop routing to it.
	PhaseStopIntake Phase = iota
	// PhaseDrain waits for in-flight HTTP requests, including advisor chats.
	PhaseDrain
	// PhaseFlush discards in-memory builder sessions.
	PhaseFlush
	// PhaseCleanup closes the proposal store and its connections.
	PhaseCleanup
)

var phaseOrder = []Phase{PhaseStopIntake, PhaseDrain, PhaseFlush, PhaseCleanup}

func (p Phase) String() string {
	switch p {
	case PhaseStopIntake:
		return "stop-intake"
	case PhaseDrain:
		return "drain"
	case PhaseFlush:
		return "flush"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Step is one named shutdown action.
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Coordinator runs registered steps phase by phase within one overall timeout.
type Coordinator struct {
	mu      sync.Mutex
	steps   map[Phase][]Step
	timeout time.Duration
	logger  *zap.Logger

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	err          error
}

// Config holds configuration for the shutdown coordinator.
type Config struct {
	// Timeout is the total time allowed for shutdown.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(cfg *Config, logger *zap.Logger) *Coordinator {
	if cfg == nil || cfg.Timeout <= 0 {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		steps:      make(map[Phase][]Step),
		timeout:    cfg.Timeout,
		logger:     logger.Named("shutdown"),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// RegisterFunc adds a named step to a phase.
func (c *Coordinator) RegisterFunc(phase Phase, name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.steps[phase] = append(c.steps[phase], Step{Name: name, Fn: fn})
	c.logger.Debug("registered shutdown step",
		zap.String("step", name),
		zap.String("phase", phase.String()),
	)
}

// Shutdown starts the sequence once and waits for it, or for ctx.
// The sequence itself always gets the full configured timeout. The returned
// error joins every failed step.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)
		go c.run()
	})

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShutdownCh is closed when shutdown starts.
func (c *Coordinator) ShutdownCh() <-chan struct{} {
	return c.shutdownCh
}

func (c *Coordinator) run() {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.logger.Info("starting graceful shutdown", zap.Duration("timeout", c.timeout))

	var errs []error
	for _, phase := range phaseOrder {
		c.mu.Lock()
		steps := c.steps[phase]
		c.mu.Unlock()

		if len(steps) == 0 {
			continue
		}

		c.logger.Info("executing shutdown phase",
			zap.String("phase", phase.String()),
			zap.Int("steps", len(steps)),
		)
		errs = append(errs, c.runPhase(ctx, phase, steps)...)

		if ctx.Err() != nil {
			c.logger.Error("shutdown timeout exceeded",
				zap.String("phase", phase.String()),
				zap.Error(ctx.Err()),
			)
			errs = append(errs, fmt.Errorf("phase %s: %w", phase, ctx.Err()))
			break
		}
	}

	c.err = errors.Join(errs...)
	if c.err != nil {
		c.logger.Error("shutdown completed with errors", zap.Int("error_count", len(errs)))
		return
	}
	c.logger.Info("graceful shutdown complete")
}

func (c *Coordinator) runPhase(ctx context.Context, phase Phase, steps []Step) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, step := range steps {
		wg.Add(1)
		go func(s Step) {
			defer wg.Done()

			start := time.Now()
			if err := s.Fn(ctx); err != nil {
				c.logger.Error("shutdown step failed",
					zap.String("step", s.Name),
					zap.String("phase", phase.String()),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
				mu.Unlock()
				return
			}
			c.logger.Debug("shutdown step complete",
				zap.String("step", s.Name),
				zap.Duration("duration", time.Since(start)),
			)
		}(step)
	}
	wg.Wait()
	return errs
}

// ReadinessProbe reports false once shutdown has started or the server was
// marked not ready.
type ReadinessProbe struct {
	ready atomic.Bool
}

// NewReadinessProbe returns a ready probe that flips when coordinator starts
// shutting down.
func NewReadinessProbe(coordinator *Coordinator) *ReadinessProbe {
	rp := &ReadinessProbe{}
	rp.ready.Store(true)
	go func() {
		<-coordinator.ShutdownCh()
		rp.ready.Store(false)
	}()
	return rp
}

// SetReady overrides the probe state.
func (rp *ReadinessProbe) SetReady(ready bool) {
	rp.ready.Store(ready)
}

// IsReady returns true if the server should receive traffic.
func (rp *ReadinessProbe) IsReady() bool {
	return rp.ready.Load()
}
