package hayai

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for HTTP response codes.
// These are used to signal completion with specific HTTP status codes.
// When a handler returns one of these errors, the pipeline stops but the
// response is considered successful (not a server error).

// Client errors (4xx)
var (
	// ErrBadRequest indicates the request was invalid (400)
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates missing or invalid authentication (401)
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the request is not allowed (403)
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the resource was not found (404)
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (409)
	ErrConflict = errors.New("conflict")

	// ErrUnprocessableEntity indicates the request was well-formed but semantically invalid (422)
	ErrUnprocessableEntity = errors.New("unprocessable entity")

	// ErrTooManyRequests indicates rate limiting (429)
	ErrTooManyRequests = errors.New("too many requests")
)

// Server errors (5xx)
var (
	// ErrInternalServer indicates an unexpected server error (500)
	ErrInternalServer = errors.New("internal server error")

	// ErrNotImplemented indicates the functionality is not implemented (501)
	ErrNotImplemented = errors.New("not implemented")

	// ErrServiceUnavailable indicates the service is temporarily unavailable (503)
	ErrServiceUnavailable = errors.New("service unavailable")
)

var (
	_ error = &SchemaConflictError{}
	_ error = &UnknownTypeError{}
	_ error = &ConstraintTargetError{}
	_ error = &RouteConflictError{}
	_ error = &UnresolvedDependencyError{}
	_ error = &CyclicDependencyError{}
	_ error = &DependencyUnavailableError{}
)

// SchemaConflictError reports a TypeDescriptor registered twice with
// structurally different shapes. This is a build-time programming error and
// aborts startup.
type SchemaConflictError struct {
	Descriptor TypeDescriptor
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict: %q already registered with a different shape", e.Descriptor.Name)
}

// UnknownTypeError reports a schema resolve for a descriptor that was never
// registered. During build it aborts startup; while serving it indicates an
// internal bug and fails only the affected request.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type: %q is not registered", e.Name)
}

// ConstraintTargetError reports a value constraint attached to a field whose
// schema kind cannot enforce it, such as MinLength on a nested struct.
// Build-time fatal.
type ConstraintTargetError struct {
	Type       string
	Field      string
	Constraint ConstraintKind
}

func (e *ConstraintTargetError) Error() string {
	return fmt.Sprintf("constraint target: %q cannot apply to non-scalar field %s.%s", e.Constraint, e.Type, e.Field)
}

// RouteConflictError reports two routes composed to the same absolute
// (method, path) pair. Build-time fatal.
type RouteConflictError struct {
	Method string
	Path   string
}

func (e *RouteConflictError) Error() string {
	return fmt.Sprintf("route conflict: duplicate registration of %s %s", e.Method, e.Path)
}

// UnresolvedDependencyError reports a dependency requirement with no binding
// anywhere in the enclosing router chain. Build-time fatal.
type UnresolvedDependencyError struct {
	Route      string
	Descriptor TypeDescriptor
}

func (e *UnresolvedDependencyError) Error() string {
	if e.Route == "" {
		return fmt.Sprintf("unresolved dependency: no binding for %q", e.Descriptor.Name)
	}
	return fmt.Sprintf("unresolved dependency: route %s requires %q with no binding in scope", e.Route, e.Descriptor.Name)
}

// CyclicDependencyError reports providers that mutually depend on each other.
// Build-time fatal.
type CyclicDependencyError struct {
	Chain []TypeDescriptor
}

func (e *CyclicDependencyError) Error() string {
	names := make([]string, len(e.Chain))
	for i, desc := range e.Chain {
		names[i] = desc.Name
	}
	return "cyclic dependency: " + strings.Join(names, " -> ")
}

// DependencyUnavailableError reports a provider failure while resolving a
// request's dependency. The handler is never invoked; the request receives a
// service-error response.
type DependencyUnavailableError struct {
	Descriptor TypeDescriptor
	Cause      error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("dependency unavailable: provider for %q failed: %v", e.Descriptor.Name, e.Cause)
}

func (e *DependencyUnavailableError) Unwrap() error {
	return e.Cause
}
