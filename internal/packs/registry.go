// ABOUTME: Thread-safe registry of tool packs, keyed by tool name.
// ABOUTME: Rejects name collisions and lists tools in registration order.

package packs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrToolCollision indicates a tool name already exists in another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidTool indicates a tool is missing its name, schema or handler.
var ErrInvalidTool = errors.New("invalid tool")

// Registry is the dispatch table from tool name to handler.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*builtinEntry // tool name -> builtin entry
	order    []string                 // tool names in registration order
	logger   *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// RegisterBuiltinPack registers a pack of tools that execute in-process.
// Returns ErrToolCollision if any tool name is already registered, in which
// case nothing from the pack is registered.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(pack.Tools))
	for _, tool := range pack.Tools {
		if tool == nil || tool.Definition == nil || tool.Definition.Name == "" || tool.Handler == nil {
			return fmt.Errorf("%w in pack '%s'", ErrInvalidTool, pack.ID)
		}
		name := tool.Definition.Name
		if existing, exists := r.builtins[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, existing.PackID)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: tool '%s' listed twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		seen[name] = struct{}{}
	}

	for _, tool := range pack.Tools {
		r.builtins[tool.Definition.Name] = &builtinEntry{
			Tool:   tool,
			PackID: pack.ID,
		}
		r.order = append(r.order, tool.Definition.Name)
	}

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.builtins),
	)

	return nil
}

// GetBuiltinTool returns a builtin tool by name, or nil if not found.
func (r *Registry) GetBuiltinTool(name string) *BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.builtins[name]; ok {
		return entry.Tool
	}
	return nil
}

// IsBuiltin returns true if the tool name is registered.
func (r *Registry) IsBuiltin(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builtins[name]
	return ok
}

// BuiltinPackInfo contains information about a registered pack for display.
type BuiltinPackInfo struct {
	ID    string
	Tools []*BuiltinTool
}

// ListBuiltinPacks returns the registered packs in registration order.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []BuiltinPackInfo
	index := make(map[string]int)
	for _, name := range r.order {
		entry := r.builtins[name]
		i, ok := index[entry.PackID]
		if !ok {
			i = len(result)
			index[entry.PackID] = i
			result = append(result, BuiltinPackInfo{ID: entry.PackID})
		}
		result[i].Tools = append(result[i].Tools, entry.Tool)
	}
	return result
}

// GetAllTools returns every tool definition in registration order.
func (r *Registry) GetAllTools() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.builtins[name].Tool.Definition)
	}
	return defs
}

// Close clears the registry.
// This should be called during graceful shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	builtinCount := len(r.builtins)
	r.builtins = make(map[string]*builtinEntry)
	r.order = nil

	r.logger.Info("registry closed", "builtins_cleared", builtinCount)
}
