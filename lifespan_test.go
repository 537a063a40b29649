package hayai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLifespanStartupOrder(t *testing.T) {
	m := NewLifespanManager(time.Second)

	var order []string
	m.OnStartup("connect-db", func(ctx context.Context) error {
		order = append(order, "connect-db")
		return nil
	}).OnStartup("warm-cache", func(ctx context.Context) error {
		order = append(order, "warm-cache")
		return nil
	})

	if err := m.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	if len(order) != 2 || order[0] != "connect-db" || order[1] != "warm-cache" {
		t.Errorf("startup order = %v, want [connect-db warm-cache]", order)
	}
	if m.State() != StateServing {
		t.Errorf("State() = %s, want serving", m.State())
	}
}

func TestLifespanStartupFailureStops(t *testing.T) {
	m := NewLifespanManager(time.Second)

	boom := errors.New("boom")
	ran := false
	m.OnStartup("bad", func(ctx context.Context) error {
		return boom
	}).OnStartup("never", func(ctx context.Context) error {
		ran = true
		return nil
	})

	err := m.Startup(context.Background())
	if err == nil {
		t.Fatal("expected startup error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped boom", err)
	}
	if ran {
		t.Error("hook after the failing one should not run")
	}
	if m.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", m.State())
	}
}

func TestLifespanStartupTwice(t *testing.T) {
	m := NewLifespanManager(time.Second)

	if err := m.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}
	if err := m.Startup(context.Background()); err == nil {
		t.Error("second Startup() should error")
	}
}

func TestLifespanShutdownReverseOrder(t *testing.T) {
	m := NewLifespanManager(time.Second)

	var order []string
	m.OnShutdown("close-db", func(ctx context.Context) error {
		order = append(order, "close-db")
		return nil
	}).OnShutdown("flush-cache", func(ctx context.Context) error {
		order = append(order, "flush-cache")
		return nil
	})

	if err := m.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if len(order) != 2 || order[0] != "flush-cache" || order[1] != "close-db" {
		t.Errorf("shutdown order = %v, want [flush-cache close-db]", order)
	}
	if m.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", m.State())
	}
}

func TestLifespanShutdownFirstErrorReturned(t *testing.T) {
	m := NewLifespanManager(time.Second)

	first := errors.New("first")
	second := errors.New("second")
	var ran []string
	m.OnShutdown("a", func(ctx context.Context) error {
		ran = append(ran, "a")
		return second
	}).OnShutdown("b", func(ctx context.Context) error {
		ran = append(ran, "b")
		return first
	})

	if err := m.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	// Reverse order: b runs before a, so b's error is the first one.
	err := m.Shutdown(context.Background())
	if !errors.Is(err, first) {
		t.Errorf("Shutdown() error = %v, want wrapped %v", err, first)
	}
	if len(ran) != 2 {
		t.Errorf("ran = %v, want both hooks despite the error", ran)
	}
}

func TestLifespanShutdownHookTimeout(t *testing.T) {
	m := NewLifespanManager(20 * time.Millisecond)

	flushed := false
	m.OnShutdown("flush", func(ctx context.Context) error {
		flushed = true
		return nil
	}).OnShutdown("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return errors.New("too late")
	})

	if err := m.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	start := time.Now()
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil for a timed-out hook", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("shutdown took %v, timed-out hook should be skipped", elapsed)
	}
	if !flushed {
		t.Error("hooks after the timed-out one should still run")
	}
}

func TestLifespanShutdownBeforeServing(t *testing.T) {
	m := NewLifespanManager(time.Second)

	ran := false
	m.OnShutdown("noop", func(ctx context.Context) error {
		ran = true
		return nil
	})

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if ran {
		t.Error("shutdown hooks should not run when serving never started")
	}
	if m.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", m.State())
	}
}

func TestLifespanStateString(t *testing.T) {
	states := map[LifespanState]string{
		StateNotStarted:   "not_started",
		StateStarting:     "starting",
		StateServing:      "serving",
		StateShuttingDown: "shutting_down",
		StateStopped:      "stopped",
		LifespanState(99): "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
