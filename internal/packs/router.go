// ABOUTME: Routes tool calls to registered handlers by name.
// ABOUTME: Applies the call timeout and reports latency and outcome per tool.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 30 * time.Second

// Recorder receives per-call observations; the metrics package implements it.
type Recorder interface {
	ObserveToolCall(tool, outcome string, elapsed time.Duration)
}

// ToolResult is the outcome of a routed call. Exactly one of Output or Error is set.
type ToolResult struct {
	RequestID string
	Output    json.RawMessage
	Error     string
}

// IsError reports whether the handler failed.
func (r *ToolResult) IsError() bool {
	return r.Error != ""
}

// Router routes tool calls to the registered handlers.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	recorder Recorder
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
	Recorder Recorder // optional
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		registry: cfg.Registry,
		logger:   logger,
		timeout:  timeout,
		recorder: cfg.Recorder,
	}
}

// RouteToolCall executes the named tool. Handler failures are returned as a
// ToolResult with Error set; the error return is reserved for an unknown tool
// or a cancelled context.
func (r *Router) RouteToolCall(ctx context.Context, toolName string, input json.RawMessage, requestID, caller string) (*ToolResult, error) {
	builtin := r.registry.GetBuiltinTool(toolName)
	if builtin == nil {
		r.logger.Debug("tool not found in registry",
			"tool_name", toolName,
			"request_id", requestID,
		)
		r.observe(toolName, "not_found", 0)
		return nil, ErrToolNotFound
	}

	r.logger.Info("→ dispatching to builtin",
		"tool_name", toolName,
		"request_id", requestID,
		"caller", caller,
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	start := time.Now()
	result, err := builtin.Handler(ctx, caller, input)
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		r.logger.Warn("tool call timed out or cancelled",
			"tool_name", toolName,
			"request_id", requestID,
			"timeout", r.timeout,
			"error", ctxErr,
		)
		r.observe(toolName, "timeout", elapsed)
		return nil, ctxErr
	}

	if err != nil {
		r.logger.Warn("builtin tool error",
			"tool_name", toolName,
			"request_id", requestID,
			"error", err,
		)
		r.observe(toolName, "error", elapsed)
		return &ToolResult{RequestID: requestID, Error: err.Error()}, nil
	}

	r.logger.Info("← builtin responded",
		"tool_name", toolName,
		"request_id", requestID,
		"duration", elapsed,
	)
	r.observe(toolName, "ok", elapsed)
	return &ToolResult{RequestID: requestID, Output: result}, nil
}

func (r *Router) observe(tool, outcome string, elapsed time.Duration) {
	if r.recorder != nil {
		r.recorder.ObserveToolCall(tool, outcome, elapsed)
	}
}

// HasTool checks if a tool with the given name is registered.
func (r *Router) HasTool(toolName string) bool {
	return r.registry.IsBuiltin(toolName)
}

// GetToolDefinition returns the tool definition for a given tool name.
// Returns nil if the tool is not found.
func (r *Router) GetToolDefinition(toolName string) *ToolDefinition {
	if builtin := r.registry.GetBuiltinTool(toolName); builtin != nil {
		return builtin.Definition
	}
	return nil
}

// ListTools returns every registered tool definition.
func (r *Router) ListTools() []*ToolDefinition {
	return r.registry.GetAllTools()
}
