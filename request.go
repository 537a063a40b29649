package hayai

import (
	"context"
	"net/http"
)

// Request holds all data needed by handler callbacks.
// It embeds context and the underlying HTTP request for full access.
//
// IMPORTANT: Modifying the embedded *http.Request (headers, etc.) is not
// recommended as changes won't be reflected in the generated documentation or
// route configuration. Use Handler builder methods for documented behavior.
type Request[In any] struct {
	context.Context // Embedded for deadline, cancellation, values
	*http.Request   // Embedded for direct access when needed (use sparingly)
	Params          *Params
	Body            In
	Identity        Identity // Authenticated identity (NoIdentity for public endpoints)
	Scope           *RequestScope
}

// Params holds extracted request parameters, coerced to their declared scalar
// kinds: strings stay string, integers become int64, numbers float64,
// booleans bool.
type Params struct {
	Path   map[string]any // Path parameters (e.g., /users/{id})
	Query  map[string]any // Query parameters (e.g., ?page=1)
	Header map[string]any // Declared header parameters
}

// PathString returns a path parameter as a string.
func (p *Params) PathString(name string) string {
	s, _ := p.Path[name].(string)
	return s
}

// PathInt returns a path parameter coerced to an integer.
func (p *Params) PathInt(name string) int64 {
	n, _ := p.Path[name].(int64)
	return n
}

// QueryString returns a query parameter as a string.
func (p *Params) QueryString(name string) string {
	s, _ := p.Query[name].(string)
	return s
}

// QueryInt returns a query parameter coerced to an integer.
func (p *Params) QueryInt(name string) int64 {
	n, _ := p.Query[name].(int64)
	return n
}

// QueryBool returns a query parameter coerced to a boolean.
func (p *Params) QueryBool(name string) bool {
	b, _ := p.Query[name].(bool)
	return b
}

// HeaderString returns a declared header parameter as a string.
func (p *Params) HeaderString(name string) string {
	s, _ := p.Header[name].(string)
	return s
}

// Dependency resolves the instance bound to T for this request's scope.
// Resolution respects the route's binding chain and the request's
// cancellation; a provider failure surfaces as DependencyUnavailableError.
func Dependency[T, In any](req *Request[In]) (T, error) {
	return Resolve[T](req.Context, req.Scope)
}

// NoBody represents an empty input for handlers that don't expect a request body.
// Used for GET, HEAD, DELETE requests.
type NoBody struct{}

const noBodyTypeName = "NoBody"
