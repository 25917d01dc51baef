package shutdown

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCoordinator_RegisterFunc(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())

	coord.RegisterFunc(PhaseDrain, "http-server", func(ctx context.Context) error { return nil })
	coord.RegisterFunc(PhaseDrain, "advisor", func(ctx context.Context) error { return nil })

	if len(coord.steps[PhaseDrain]) != 2 {
		t.Errorf("expected 2 steps, got %d", len(coord.steps[PhaseDrain]))
	}
}

func TestCoordinator_Shutdown_PhasesRunInOrder(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())

	var order []Phase
	var mu sync.Mutex

	// Registered in reverse to show that registration order does not matter.
	for i := len(phaseOrder) - 1; i >= 0; i-- {
		p := phaseOrder[i]
		coord.RegisterFunc(p, p.String(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return nil
		})
	}

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if len(order) != len(phaseOrder) {
		t.Fatalf("expected %d phases, got %d", len(phaseOrder), len(order))
	}
	for i, p := range phaseOrder {
		if order[i] != p {
			t.Errorf("phase %d: expected %v, got %v", i, p, order[i])
		}
	}
}

func TestCoordinator_Shutdown_StepsInPhaseRunConcurrently(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())

	var concurrent, maxConcurrent int32
	for i := 0; i < 3; i++ {
		coord.RegisterFunc(PhaseFlush, "step", func(ctx context.Context) error {
			current := atomic.AddInt32(&concurrent, 1)
			for {
				seen := atomic.LoadInt32(&maxConcurrent)
				if current <= seen || atomic.CompareAndSwapInt32(&maxConcurrent, seen, current) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			return nil
		})
	}

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if atomic.LoadInt32(&maxConcurrent) < 2 {
		t.Errorf("expected concurrent execution, got max %d", maxConcurrent)
	}
}

func TestCoordinator_Shutdown_JoinsErrors(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())

	errStore := errors.New("close failed")
	var cleanupRan atomic.Bool
	coord.RegisterFunc(PhaseDrain, "http-server", func(ctx context.Context) error {
		return errors.New("drain failed")
	})
	coord.RegisterFunc(PhaseCleanup, "proposal-store", func(ctx context.Context) error {
		cleanupRan.Store(true)
		return errStore
	})

	err := coord.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !cleanupRan.Load() {
		t.Error("expected later phases to run after a failed step")
	}
	if !errors.Is(err, errStore) {
		t.Errorf("expected joined error to wrap store error, got %v", err)
	}
	if !strings.Contains(err.Error(), "http-server") {
		t.Errorf("expected error to name the failed step, got %q", err.Error())
	}
}

func TestCoordinator_Shutdown_RespectsTimeout(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 100 * time.Millisecond}, zap.NewNop())

	coord.RegisterFunc(PhaseDrain, "slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	err := coord.Shutdown(context.Background())

	if time.Since(start) > 500*time.Millisecond {
		t.Error("shutdown should have timed out quickly")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCoordinator_ShutdownOnlyOnce(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())

	var callCount int32
	coord.RegisterFunc(PhaseCleanup, "step", func(ctx context.Context) error {
		atomic.AddInt32(&callCount, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = coord.Shutdown(context.Background())
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&callCount); got != 1 {
		t.Errorf("expected step called once, got %d", got)
	}
}

func TestCoordinator_ShutdownCh(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())

	select {
	case <-coord.ShutdownCh():
		t.Error("shutdown channel should not be closed initially")
	default:
	}

	go func() { _ = coord.Shutdown(context.Background()) }()

	select {
	case <-coord.ShutdownCh():
	case <-time.After(time.Second):
		t.Error("shutdown channel should be closed after Shutdown()")
	}
}

func TestReadinessProbe(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())
	probe := NewReadinessProbe(coord)

	if !probe.IsReady() {
		t.Error("probe should be ready initially")
	}

	probe.SetReady(false)
	if probe.IsReady() {
		t.Error("expected probe not ready after SetReady(false)")
	}
	probe.SetReady(true)

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for probe.IsReady() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if probe.IsReady() {
		t.Error("probe should not be ready after shutdown started")
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseStopIntake, "stop-intake"},
		{PhaseDrain, "drain"},
		{PhaseFlush, "flush"},
		{PhaseCleanup, "cleanup"},
		{Phase(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.expected {
				t.Errorf("Phase.String() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
