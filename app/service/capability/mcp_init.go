package capability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agrosmi/app/config"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const initTimeout = time.Minute

type mcpServer struct {
	name   string
	client client.MCPClient
	tools  map[string]mcp.Tool
}

func createMCPClient(server config.MCPServer) (client.MCPClient, error) {
	return client.NewStdioMCPClient(
		server.Command,
		server.Env,
		server.Args...,
	)
}

func startMCPServer(ctx context.Context, server config.MCPServer) (*mcpServer, error) {
	mcpClient, err := createMCPClient(server)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %s: %w", server.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "agrosmi",
		Version: "1.0.0",
	}

	if _, err = mcpClient.Initialize(ctx, initRequest); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP client %s: %w", server.Name, err)
	}

	toolsResponse, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to list tools from %s: %w", server.Name, err)
	}

	result := &mcpServer{
		name:   server.Name,
		client: mcpClient,
		tools:  make(map[string]mcp.Tool, len(toolsResponse.Tools)),
	}
	for _, tool := range toolsResponse.Tools {
		result.tools[tool.Name] = tool
	}

	slog.Info("MCP server started",
		"server", server.Name,
		"tools", len(result.tools),
	)

	return result, nil
}

// bindMCP maps every configured capability onto its (server, tool) pair.
func bindMCP(registry *Registry, servers []*mcpServer, bindings []config.Capability) error {
	byName := make(map[string]*mcpServer, len(servers))
	for _, server := range servers {
		byName[server.name] = server
	}

	for _, binding := range bindings {
		server, ok := byName[binding.Server]
		if !ok {
			return fmt.Errorf("capability %s: unknown MCP server %s", binding.Name, binding.Server)
		}

		tool, ok := server.tools[binding.Tool]
		if !ok {
			return fmt.Errorf("capability %s: server %s has no tool %s", binding.Name, binding.Server, binding.Tool)
		}

		adapter := &mcpToolAdapter{
			client: server.client,
			tool:   tool,
			name:   Name(binding.Name),
		}
		if err := registry.Bind(Name(binding.Name), adapter); err != nil {
			return err
		}
	}

	return nil
}
