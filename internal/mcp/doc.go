// Package mcp exposes the food-ordering tools over the Model Context Protocol.
//
// # Transports
//
// Two transports share the same packs.Router:
//
//   - Server: Streamable HTTP at /mcp, a hand-rolled JSON-RPC 2.0 endpoint
//   - NewSDKServer / ServeStdio: the official MCP Go SDK, used for stdio
//
// # HTTP Protocol
//
//   - POST /mcp: initialize, ping, tools/list, tools/call
//   - DELETE /mcp: end the session named by Mcp-Session-Id
//   - GET /mcp: 405, no server-initiated streams
//
// initialize creates a session and returns its id in the Mcp-Session-Id
// header; every later request must carry it. Notifications get 202 with no
// body. The server answers initialize with the client's protocolVersion when
// it is one of 2024-11-05, 2025-03-26, 2025-06-18 or 2025-11-25 and with the
// latest otherwise. Bodies over 1MB are rejected.
//
// # Tool Execution
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "order_dish",
//	    "arguments": {"username": "rose", "restaurant_name": "Pizza Palace", "dish_name": "Cheese Pizza"}
//	  },
//	  "id": 2
//	}
//
// Tool failures come back as a result with isError set and the message as
// text content. Unknown tools and timeouts are JSON-RPC errors.
//
// # Authentication
//
// The HTTP server reads the caller from auth.FromContext, so it is mounted
// behind auth.HTTPAuthMiddleware or auth.OptionalAuthMiddleware. The caller
// present at initialize is bound to the session; requests and DELETEs from a
// different caller are refused.
//
// # Client configuration
//
//	{
//	  "mcpServers": {
//	    "food": {"command": "food-gateway", "args": ["stdio"]}
//	  }
//	}
package mcp
