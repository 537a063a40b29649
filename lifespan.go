package hayai

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
)

// LifespanState tracks where the process is in its serving lifecycle.
type LifespanState int32

// Lifespan states, in order.
const (
	StateNotStarted LifespanState = iota
	StateStarting
	StateServing
	StateShuttingDown
	StateStopped
)

// String returns the state name.
func (s LifespanState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateServing:
		return "serving"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Hook is one startup or shutdown callback.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// LifespanManager orders startup and shutdown hook execution relative to
// route table finalization and request serving. Startup hooks run
// sequentially in registration order; the transition to serving happens only
// after all of them complete, and a failing hook is fatal. Shutdown hooks run
// sequentially in reverse registration order, each under a bounded timeout; a
// hook that exceeds its timeout is logged and skipped, never retried.
type LifespanManager struct {
	state       atomic.Int32
	startup     []namedHook
	shutdown    []namedHook
	hookTimeout time.Duration
}

// NewLifespanManager creates a manager with the given shutdown hook timeout.
func NewLifespanManager(hookTimeout time.Duration) *LifespanManager {
	return &LifespanManager{hookTimeout: hookTimeout}
}

// State returns the current lifecycle state.
func (m *LifespanManager) State() LifespanState {
	return LifespanState(m.state.Load())
}

// OnStartup registers a startup hook. Hooks run in registration order.
func (m *LifespanManager) OnStartup(name string, fn Hook) *LifespanManager {
	m.startup = append(m.startup, namedHook{name: name, fn: fn})
	return m
}

// OnShutdown registers a shutdown hook. Hooks run in reverse registration order.
func (m *LifespanManager) OnShutdown(name string, fn Hook) *LifespanManager {
	m.shutdown = append(m.shutdown, namedHook{name: name, fn: fn})
	return m
}

// Startup transitions NotStarted -> Starting -> Serving. The first hook
// failure aborts the transition, moves the manager to Stopped, and returns
// the error; the process must not serve traffic after that.
func (m *LifespanManager) Startup(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateNotStarted), int32(StateStarting)) {
		return fmt.Errorf("lifespan startup from state %s", m.State())
	}

	capitan.Emit(ctx, LifespanStarting,
		HookCountKey.Field(len(m.startup)),
	)

	for _, hook := range m.startup {
		if err := hook.fn(ctx); err != nil {
			capitan.Error(ctx, LifespanHookFailed,
				HookNameKey.Field(hook.name),
				ErrorKey.Field(err.Error()),
			)
			m.state.Store(int32(StateStopped))
			return fmt.Errorf("startup hook %q: %w", hook.name, err)
		}
	}

	m.state.Store(int32(StateServing))
	capitan.Emit(ctx, LifespanServing)
	return nil
}

// Shutdown transitions Serving -> ShuttingDown -> Stopped, running shutdown
// hooks in reverse registration order. Each hook runs under the configured
// timeout; a timed-out hook is skipped so shutdown always makes forward
// progress. The first hook error is returned but later hooks still run.
func (m *LifespanManager) Shutdown(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateServing), int32(StateShuttingDown)) {
		// Shutdown before serving (e.g. failed startup) still settles the state.
		m.state.Store(int32(StateStopped))
		return nil
	}

	var firstErr error
	for i := len(m.shutdown) - 1; i >= 0; i-- {
		hook := m.shutdown[i]
		if err := m.runBounded(ctx, hook); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutdown hook %q: %w", hook.name, err)
		}
	}

	m.state.Store(int32(StateStopped))
	capitan.Emit(ctx, LifespanStopped)
	return firstErr
}

// runBounded runs one shutdown hook under the hook timeout. The hook runs in
// its own goroutine so a hook that ignores its context cannot stall shutdown.
func (m *LifespanManager) runBounded(ctx context.Context, hook namedHook) error {
	timeout := m.hookTimeout
	if timeout <= 0 {
		return hook.fn(ctx)
	}

	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- hook.fn(hookCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-hookCtx.Done():
		capitan.Warn(ctx, LifespanHookTimeout,
			HookNameKey.Field(hook.name),
			DurationMsKey.Field(time.Since(start).Milliseconds()),
		)
		return nil
	}
}
