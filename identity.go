package hayai

import (
	"context"
	"net/http"
)

// Identity represents an authenticated user or service account.
// Users must implement this interface with their own identity type.
type Identity interface {
	// ID returns the unique identifier for this identity (e.g., user ID, service account ID).
	ID() string

	// TenantID returns the tenant/organization this identity belongs to.
	// Return empty string if not applicable.
	TenantID() string

	// HasScope checks if this identity has the given scope/permission.
	HasScope(scope string) bool
}

// NoIdentity represents the absence of authentication.
// Used for public endpoints that don't require authentication.
type NoIdentity struct{}

// ID implements Identity.
func (NoIdentity) ID() string {
	return ""
}

// TenantID implements Identity.
func (NoIdentity) TenantID() string {
	return ""
}

// HasScope implements Identity.
func (NoIdentity) HasScope(_ string) bool {
	return false
}

// Authenticator verifies a request against a named security scheme and
// produces the caller's identity. Returning an error yields a 401 without
// invoking the handler. The engine calls it only for routes whose effective
// security requirement is non-empty.
type Authenticator func(r *http.Request, schemes []string) (Identity, error)

type contextKey int

const identityContextKey contextKey = iota

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFrom extracts the authenticated identity from a context.
// Returns NoIdentity when the request was not authenticated.
func IdentityFrom(ctx context.Context) Identity {
	if val := ctx.Value(identityContextKey); val != nil {
		if id, ok := val.(Identity); ok {
			return id
		}
	}
	return NoIdentity{}
}
