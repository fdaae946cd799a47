package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/tools"
)

var _ tools.Tool = (*mcpToolAdapter)(nil)

type mcpToolAdapter struct {
	client client.MCPClient
	tool   mcp.Tool
	name   Name
}

func (m *mcpToolAdapter) Name() string {
	return string(m.name)
}

func (m *mcpToolAdapter) Description() string {
	return m.tool.Description
}

func (m *mcpToolAdapter) Call(ctx context.Context, input string) (string, error) {
	callRequest := mcp.CallToolRequest{
		Request: mcp.Request{
			Method: "tools/call",
		},
	}

	callRequest.Params.Name = m.tool.Name
	callRequest.Params.Arguments = m.arguments(input)

	response, err := m.client.CallTool(ctx, callRequest)
	if err != nil {
		return "", fmt.Errorf("MCP tool call failed: %w", err)
	}

	var result strings.Builder
	for _, content := range response.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			result.WriteString(textContent.Text)
			result.WriteString("\n")
		}
	}

	text := strings.TrimSpace(result.String())
	if response.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}

	return text, nil
}

func (m *mcpToolAdapter) arguments(input string) map[string]any {
	input = strings.TrimSpace(input)
	if input == "" {
		return map[string]any{}
	}

	if input[0] == '{' {
		var args map[string]any
		if err := json.Unmarshal([]byte(input), &args); err == nil {
			return args
		}
	}

	// Plain text goes to the first declared property
	for propName := range m.tool.InputSchema.Properties {
		return map[string]any{propName: input}
	}

	return map[string]any{"input": input}
}
