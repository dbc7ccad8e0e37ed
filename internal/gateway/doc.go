// Package gateway orchestrates the food-gateway server components.
//
// # Overview
//
// The gateway owns the catalog store, the policy client, the tool registry and
// router, the MCP HTTP server and the HTTP listener. New wires them together
// from a config.Config; Run serves until its context is cancelled.
//
// # Startup
//
//  1. OpenCatalog opens SQLite or Postgres and applies the default seed.
//  2. The policy service is built: policy.Local in local mode, or the remote
//     HTTP client in permit mode. Local mode is always synced from the
//     catalog; permit mode only when policy.sync_on_start is set.
//  3. The client is wrapped in policy.Reliable (rate limit, retries, circuit
//     breaker) reporting to the metrics package.
//  4. The food tool packs are registered and exposed over MCP.
//
// # HTTP Endpoints
//
//   - GET /health: liveness
//   - GET /health/ready: 200 when the database answers a ping
//   - GET /metrics: Prometheus metrics, when metrics.enabled
//   - POST|DELETE /mcp: MCP Streamable HTTP
//
// # Authentication
//
// With auth.jwt_secret set, /mcp sits behind auth.HTTPAuthMiddleware when
// auth.require_auth is true and auth.OptionalAuthMiddleware otherwise. The
// token subject becomes the caller every tool call is made as. Without a
// secret the endpoint is open and tools take the username argument at face
// value.
package gateway
