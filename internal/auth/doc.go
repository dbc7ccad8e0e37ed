// Package auth provides caller authentication for the MCP HTTP endpoint.
//
// # JWT Tokens
//
// Callers present an HS256 JWT whose "sub" claim is a catalog username and
// whose "iss" claim is "food-ordering". Secrets shorter than MinSecretLength
// are refused. Tokens are minted with the gateway's token command:
//
//	food-gateway token -user rose -ttl 24h
//
// # Middleware
//
//   - HTTPAuthMiddleware: token required (auth.require_auth: true)
//   - OptionalAuthMiddleware: anonymous requests pass, bad tokens don't
//
// Both resolve the subject against the catalog and attach an AuthContext.
// Tool handlers read the caller with Caller(ctx) and refuse to act on behalf
// of anyone else.
//
// # Authorization
//
// This package only establishes who is calling. What they may do is decided
// by the policy service.
package auth
