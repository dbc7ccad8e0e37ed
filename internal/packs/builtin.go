// ABOUTME: Tool definitions and in-process handler types for tool packs.
// ABOUTME: A pack groups related tools under one ID for registration.

package packs

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a tool to MCP clients.
type ToolDefinition struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema object describing the arguments.
	InputSchema json.RawMessage
}

// ToolHandler executes a tool.
// It receives the authenticated caller (empty when auth is disabled) and the
// tool input as JSON. Returns the result as JSON or an error whose message is
// shown to the user.
type ToolHandler func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error)

// BuiltinTool is a tool that executes in the server process.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID for registry lookup.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
}
