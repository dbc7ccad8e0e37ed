// ABOUTME: ToolCaller backed by an MCP SDK client session
// ABOUTME: Works over any SDK transport: spawned stdio server, streamable HTTP or in-memory

package session

import (
	"context"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ClientName identifies the chat client to servers
const ClientName = "food-chat"

// SDKCaller adapts an MCP client session to ToolCaller
type SDKCaller struct {
	Session *mcpsdk.ClientSession
}

// Connect opens an MCP client session over transport
func Connect(ctx context.Context, transport mcpsdk.Transport, version string) (*SDKCaller, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: ClientName, Version: version}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}
	return &SDKCaller{Session: cs}, nil
}

// CommandTransport spawns an MCP server binary speaking stdio
func CommandTransport(path string, args ...string) mcpsdk.Transport {
	return &mcpsdk.CommandTransport{Command: exec.Command(path, args...)}
}

// HTTPTransport connects to a streamable HTTP endpoint such as http://host/mcp
func HTTPTransport(endpoint string) mcpsdk.Transport {
	return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}
}

// CallTool implements ToolCaller
func (c *SDKCaller) CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	res, err := c.Session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", false, err
	}

	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n"), res.IsError, nil
}

// ListTools implements ToolCaller
func (c *SDKCaller) ListTools(ctx context.Context) ([]ToolInfo, error) {
	res, err := c.Session.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		return nil, err
	}
	tools := make([]ToolInfo, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description})
	}
	return tools, nil
}

// Close ends the client session
func (c *SDKCaller) Close() error {
	return c.Session.Close()
}
