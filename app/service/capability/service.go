package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agrosmi/app/client/llm"
	"agrosmi/app/config"

	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

// Service owns the capability registry and the MCP servers backing it.
type Service struct {
	*Registry

	servers []*mcpServer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)

	catalog, err := NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to build capability catalog: %w", err)
	}

	registry := NewRegistry(catalog)
	registry.Handler = llm.LogCallbackHandler{Model: "capability"}

	s := &Service{Registry: registry}

	for _, server := range cfg.MCP.Servers {
		started, err := startMCPServer(appCtx, server)
		if err != nil {
			_ = s.Shutdown()
			return nil, err
		}
		s.servers = append(s.servers, started)
	}

	if err = bindMCP(registry, s.servers, cfg.Capabilities); err != nil {
		_ = s.Shutdown()
		return nil, err
	}

	for _, name := range catalog.Names() {
		if !registry.Bound(name) {
			slog.Debug("Capability has no MCP executor", "capability", name)
		}
	}

	return s, nil
}

func (s *Service) Shutdown() error {
	var errs []error
	for _, server := range s.servers {
		if err := server.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close MCP client %s: %w", server.name, err))
		}
	}
	s.servers = nil

	return errors.Join(errs...)
}
