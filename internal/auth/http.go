// ABOUTME: HTTP middleware for JWT authentication on the MCP endpoint
// ABOUTME: Extracts JWT from Authorization header and adds the caller to context

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Tammibriggs/food-ordering/internal/store"
)

// UserLookup resolves token subjects against the catalog.
// store.Catalog satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, username string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// authenticate verifies the token and loads the user it names.
// Returns an error message (empty if successful).
func authenticate(r *http.Request, users UserLookup, verifier TokenVerifier) (*AuthContext, string) {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return nil, errMsg
	}

	username, err := verifier.Verify(token)
	if err != nil {
		return nil, "invalid token"
	}

	user, err := users.GetUser(r.Context(), username)
	if err != nil {
		return nil, "user not found"
	}

	return &AuthContext{Username: user.Username, Role: string(user.Role)}, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that requires a valid JWT
// naming a catalog user.
func HTTPAuthMiddleware(users UserLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, errMsg := authenticate(r, users, verifier)
			if errMsg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="food-ordering"`)
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// OptionalAuthMiddleware attempts JWT auth but allows unauthenticated requests.
// A request that presents a token which fails verification is still rejected.
func OptionalAuthMiddleware(users UserLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}

			authCtx, errMsg := authenticate(r, users, verifier)
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
