package hayai

import (
	"context"
	"net/http"
)

// Endpoint represents a declared route handler with metadata.
type Endpoint interface {
	// Describe returns the declarative route specification for this handler.
	// The returned descriptor carries relative paths and local metadata;
	// Compose resolves it into its absolute form.
	Describe() *RouteDescriptor

	// Process handles the HTTP request and writes the response.
	// Returns the HTTP status code written and any error encountered.
	Process(ctx context.Context, r *http.Request, w http.ResponseWriter, inv *Invocation) (int, error)

	// Middleware returns handler-specific middleware
	Middleware() []func(http.Handler) http.Handler

	// Lifecycle
	Close() error
}

// Invocation carries the build-phase products one request needs: the composed
// route, the request's dependency scope, and the shared validation pipeline
// and registry. The engine constructs one per request and hands it to the
// endpoint; endpoints never reach build structures any other way.
type Invocation struct {
	Route    *RouteDescriptor
	Scope    *RequestScope
	Pipeline *ValidationPipeline
	Registry *SchemaRegistry
}
