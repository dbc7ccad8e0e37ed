// ABOUTME: Exposes the routed tools over the official MCP Go SDK (stdio and other SDK transports).
// ABOUTME: Every registered tool becomes an SDK tool whose handler calls the router.

package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Tammibriggs/food-ordering/internal/packs"
)

// SDKConfig configures an SDK-backed server.
type SDKConfig struct {
	Router *packs.Router
	Logger *slog.Logger
	// Caller is the username every call is made as. Empty means the username
	// argument of each tool decides, as with unauthenticated HTTP.
	Caller string
}

// NewSDKServer builds an MCP SDK server exposing every tool known to the router.
func NewSDKServer(cfg SDKConfig) *mcpsdk.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: Version}, nil)
	for _, def := range cfg.Router.ListTools() {
		srv.AddTool(&mcpsdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, sdkHandler(cfg.Router, logger, def.Name, cfg.Caller))
	}
	return srv
}

func sdkHandler(router *packs.Router, logger *slog.Logger, name, caller string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var input json.RawMessage
		if req.Params != nil {
			input = req.Params.Arguments
		}
		if len(input) == 0 || string(input) == "null" {
			input = json.RawMessage(`{}`)
		}

		requestID := uuid.New().String()
		resp, err := router.RouteToolCall(ctx, name, input, requestID, caller)
		if err != nil {
			logger.Warn("tool execution failed", "tool_name", name, "request_id", requestID, "error", err)
			return nil, err
		}

		text := string(resp.Output)
		if resp.IsError() {
			text = resp.Error
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			IsError: resp.IsError(),
		}, nil
	}
}

// ServeStdio runs the SDK server on stdin/stdout until ctx is done or the
// client disconnects.
func ServeStdio(ctx context.Context, cfg SDKConfig) error {
	return NewSDKServer(cfg).Run(ctx, &mcpsdk.StdioTransport{})
}
