package decision

import (
	"context"
	"fmt"

	"agrosmi/app/client/llm"
	"agrosmi/app/config"
	"agrosmi/app/service/responder"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

func New(di *do.Injector) (*Node, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)
	catalog := do.MustInvoke[*responder.Catalog](di)

	model, err := llm.New(appCtx, cfg.LLM.Decision)
	if err != nil {
		return nil, fmt.Errorf("decision model: %w", err)
	}

	options := pie.Map(catalog.Responders(), func(r responder.Responder) Option {
		return Option{ID: r.ID(), Description: r.Description()}
	})

	return NewNode(model, options, Config{
		Attempts:    cfg.Orchestrator.DecisionAttempts,
		Timeout:     cfg.LLM.Decision.Timeout,
		Temperature: cfg.LLM.Decision.Temperature,
	})
}
