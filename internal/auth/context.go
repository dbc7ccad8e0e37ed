// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// AuthContext holds the authenticated identity extracted from a request.
// This is populated by the HTTP middleware and read by the MCP handlers.
type AuthContext struct {
	Username string // catalog username, lower-cased
	Role     string // "parent" | "child"
}

// IsParent returns true if the caller holds the parent role in the catalog.
func (a *AuthContext) IsParent() bool {
	return a.Role == "parent"
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	auth, ok := val.(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// Caller returns the authenticated username, or "" for anonymous requests.
func Caller(ctx context.Context) string {
	if a := FromContext(ctx); a != nil {
		return a.Username
	}
	return ""
}
