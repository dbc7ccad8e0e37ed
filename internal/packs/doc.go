// Package packs provides the tool dispatch table.
//
// # Overview
//
// Tools are grouped into packs. Each tool has a ToolDefinition (name,
// description, JSON input schema) and a ToolHandler that runs in-process.
// Tool names are globally unique; registering a pack whose tool name is
// already taken fails with ErrToolCollision and registers nothing.
//
// # Architecture
//
//   - Registry: maps tool names to handlers, preserving registration order
//   - Router: looks a tool up, applies the call timeout, runs the handler and
//     reports the outcome to an optional Recorder
//
// The food-ordering tools live in internal/tools; MCP transports in
// internal/mcp list and call tools through the Router.
//
// # Usage
//
//	registry := packs.NewRegistry(logger)
//	if err := tools.RegisterAll(registry, deps); err != nil {
//		return err
//	}
//	router := packs.NewRouter(packs.RouterConfig{Registry: registry, Logger: logger})
//	result, err := router.RouteToolCall(ctx, "list_restaurants", nil, requestID, caller)
//
// A handler error becomes a ToolResult with Error set, which transports
// surface as an error result rather than a protocol failure.
package packs
