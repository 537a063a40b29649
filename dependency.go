package hayai

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// ProviderScope determines when a bound instance is created and how long it
// lives.
type ProviderScope int

const (
	// ScopeSingleton instantiates once during graph finalization; the same
	// instance is shared by reference across all concurrent requests.
	ScopeSingleton ProviderScope = iota

	// ScopePerRequest instantiates fresh for each incoming request and
	// releases the instance when the request completes or fails.
	ScopePerRequest
)

// String returns the scope name.
func (s ProviderScope) String() string {
	switch s {
	case ScopeSingleton:
		return "singleton"
	case ScopePerRequest:
		return "per_request"
	default:
		return "unknown"
	}
}

// Provider produces an instance of a bound type or fails. ctx is the request
// context for per-request providers and the build context for singletons.
// deps resolves the provider's own sub-dependencies.
type Provider func(ctx context.Context, deps *RequestScope) (any, error)

// DependencyBinding associates a TypeDescriptor with a provider and a scope.
// Bindings are owned by the DependencyGraph; router nodes reference them by
// descriptor, never own them.
type DependencyBinding struct {
	Descriptor TypeDescriptor
	Scope      ProviderScope
	Provider   Provider

	// DependsOn declares the provider's own sub-dependencies, used for
	// unresolved and cycle checks at finalization.
	DependsOn []TypeDescriptor
}

// DependencyGraph registers providers keyed by TypeDescriptor and resolves
// handler dependencies. Binding happens during the single-threaded build
// phase; after Finalize the graph is read-only and safe for concurrent
// resolution.
type DependencyGraph struct {
	bindings   map[string]*DependencyBinding
	singletons map[*DependencyBinding]any
	finalized  bool
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		bindings:   make(map[string]*DependencyBinding),
		singletons: make(map[*DependencyBinding]any),
	}
}

// Bind registers a graph-wide binding. Rebinding the same descriptor before
// finalization replaces the previous provider.
func (g *DependencyGraph) Bind(b DependencyBinding) *DependencyGraph {
	if g.finalized {
		panic("hayai: Bind after Finalize")
	}
	binding := b
	g.bindings[b.Descriptor.Name] = &binding
	return g
}

// BindProvider registers a typed provider keyed by T's descriptor and returns
// that descriptor for use in route dependency declarations.
func BindProvider[T any](g *DependencyGraph, scope ProviderScope, provider func(context.Context, *RequestScope) (T, error), dependsOn ...TypeDescriptor) TypeDescriptor {
	desc := DescriptorFor[T]()
	g.Bind(DependencyBinding{
		Descriptor: desc,
		Scope:      scope,
		Provider: func(ctx context.Context, deps *RequestScope) (any, error) {
			return provider(ctx, deps)
		},
		DependsOn: dependsOn,
	})
	return desc
}

// Binding returns the graph-wide binding for a descriptor, if any.
func (g *DependencyGraph) Binding(desc TypeDescriptor) (*DependencyBinding, bool) {
	b, ok := g.bindings[desc.Name]
	return b, ok
}

// Finalize validates the graph against the composed route table and
// instantiates every singleton exactly once. It fails with
// UnresolvedDependencyError when a route requires a descriptor with no
// binding in its router chain, and with CyclicDependencyError when providers
// mutually depend on each other. Both are build-time fatal; the engine never
// reaches serving after a Finalize error.
func (g *DependencyGraph) Finalize(ctx context.Context, table *RouteTable) error {
	if g.finalized {
		return nil
	}

	// Every route requirement must resolve against the route's binding chain
	// or a graph-wide binding.
	if table != nil {
		for _, rt := range table.Routes {
			for _, req := range rt.Requires {
				if g.lookupBinding(rt.Bindings, req) == nil {
					return &UnresolvedDependencyError{
						Route:      rt.Method + " " + rt.Path,
						Descriptor: req,
					}
				}
			}
			if err := g.checkEdges(rt.Bindings); err != nil {
				return err
			}
		}
	}
	if err := g.checkEdges(nil); err != nil {
		return err
	}

	// Instantiate singletons in dependency order, each distinct binding once.
	build := &RequestScope{
		ID:        uuid.NewString(),
		graph:     g,
		instances: make(map[*DependencyBinding]any),
	}
	if err := g.instantiateSingletons(ctx, g.bindings, build); err != nil {
		return err
	}
	if table != nil {
		for _, rt := range table.Routes {
			// Providers resolve sub-dependencies through the build scope, so
			// it must see the same binding chain checkEdges just validated.
			build.overlay = rt.Bindings
			if err := g.instantiateSingletons(ctx, rt.Bindings, build); err != nil {
				return err
			}
		}
		build.overlay = nil
	}

	g.finalized = true
	capitan.Emit(ctx, GraphFinalized,
		BindingCountKey.Field(len(g.bindings)),
		SingletonCountKey.Field(len(g.singletons)),
	)
	return nil
}

// checkEdges verifies the DependsOn edges reachable through the given overlay:
// every edge target must be bound, and no cycle may exist.
func (g *DependencyGraph) checkEdges(overlay map[string]*DependencyBinding) error {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []TypeDescriptor

	var visit func(desc TypeDescriptor) error
	visit = func(desc TypeDescriptor) error {
		switch color[desc.Name] {
		case grey:
			return &CyclicDependencyError{Chain: append(append([]TypeDescriptor{}, stack...), desc)}
		case black:
			return nil
		}

		b := g.lookupBinding(overlay, desc)
		if b == nil {
			return &UnresolvedDependencyError{Descriptor: desc}
		}

		color[desc.Name] = grey
		stack = append(stack, desc)
		for _, sub := range b.DependsOn {
			if err := visit(sub); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[desc.Name] = black
		return nil
	}

	for _, b := range overlay {
		if err := visit(b.Descriptor); err != nil {
			return err
		}
	}
	if overlay == nil {
		for _, b := range g.bindings {
			if err := visit(b.Descriptor); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *DependencyGraph) instantiateSingletons(ctx context.Context, bindings map[string]*DependencyBinding, build *RequestScope) error {
	for _, b := range bindings {
		if b.Scope != ScopeSingleton {
			continue
		}
		if _, done := g.singletons[b]; done {
			continue
		}
		instance, err := b.Provider(ctx, build)
		if err != nil {
			return &DependencyUnavailableError{Descriptor: b.Descriptor, Cause: err}
		}
		g.singletons[b] = instance
		capitan.Emit(ctx, SingletonInstantiated,
			TypeNameKey.Field(b.Descriptor.Name),
		)
	}
	return nil
}

// lookupBinding resolves a descriptor against a route overlay first, then the
// graph-wide bindings. Node-local bindings shadow ancestors by construction of
// the overlay during compose.
func (g *DependencyGraph) lookupBinding(overlay map[string]*DependencyBinding, desc TypeDescriptor) *DependencyBinding {
	if overlay != nil {
		if b, ok := overlay[desc.Name]; ok {
			return b
		}
	}
	return g.bindings[desc.Name]
}

// RequestScope holds per-request dependency instances. Ownership is exclusive
// to the request's lifetime: instances are created on first resolve and
// released when the request completes or fails.
type RequestScope struct {
	// ID uniquely identifies this scope for telemetry correlation.
	ID string

	graph   *DependencyGraph
	overlay map[string]*DependencyBinding

	mu        sync.Mutex
	instances map[*DependencyBinding]any
	closers   []io.Closer
	released  bool
}

// NewRequestScope opens a scope for one request against a composed route.
// route may be nil for scopes that only see graph-wide bindings.
func (g *DependencyGraph) NewRequestScope(route *RouteDescriptor) *RequestScope {
	s := &RequestScope{
		ID:        uuid.NewString(),
		graph:     g,
		instances: make(map[*DependencyBinding]any),
	}
	if route != nil {
		s.overlay = route.Bindings
	}
	return s
}

// Resolve produces the instance bound to desc. Singletons come from the
// finalized graph; per-request instances are cached in this scope. Request
// cancellation propagates: a canceled context aborts resolution before the
// provider runs.
func (s *RequestScope) Resolve(ctx context.Context, desc TypeDescriptor) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := s.graph.lookupBinding(s.overlay, desc)
	if b == nil {
		return nil, &DependencyUnavailableError{
			Descriptor: desc,
			Cause:      &UnresolvedDependencyError{Descriptor: desc},
		}
	}

	if b.Scope == ScopeSingleton {
		if instance, ok := s.graph.singletons[b]; ok {
			return instance, nil
		}
		// Reached only from singleton providers during finalization.
		instance, err := b.Provider(ctx, s)
		if err != nil {
			return nil, &DependencyUnavailableError{Descriptor: desc, Cause: err}
		}
		s.graph.singletons[b] = instance
		return instance, nil
	}

	s.mu.Lock()
	if instance, ok := s.instances[b]; ok {
		s.mu.Unlock()
		return instance, nil
	}
	s.mu.Unlock()

	// The provider may resolve its own sub-dependencies through this scope,
	// so the lock is not held across the call.
	instance, err := b.Provider(ctx, s)
	if err != nil {
		capitan.Warn(ctx, DependencyFailed,
			TypeNameKey.Field(desc.Name),
			ScopeIDKey.Field(s.ID),
			ErrorKey.Field(err.Error()),
		)
		return nil, &DependencyUnavailableError{Descriptor: desc, Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.instances[b]; ok {
		return cached, nil
	}
	s.instances[b] = instance
	if closer, ok := instance.(io.Closer); ok {
		s.closers = append(s.closers, closer)
	}
	return instance, nil
}

// Release discards all per-request instances, closing any that implement
// io.Closer in reverse creation order. Safe to call more than once.
func (s *RequestScope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true

	for i := len(s.closers) - 1; i >= 0; i-- {
		//nolint:errcheck // release must make forward progress
		s.closers[i].Close()
	}
	s.closers = nil
	s.instances = nil
}

// Resolve returns the instance bound to T from the scope, typed.
func Resolve[T any](ctx context.Context, scope *RequestScope) (T, error) {
	var zero T
	instance, err := scope.Resolve(ctx, DescriptorFor[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &DependencyUnavailableError{
			Descriptor: DescriptorFor[T](),
			Cause:      ErrInternalServer,
		}
	}
	return typed, nil
}
