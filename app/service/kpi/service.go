package kpi

import (
	"context"
	"fmt"

	"agrosmi/app/config"
	"agrosmi/app/service/capability"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/tools"
)

var _ do.Shutdownable = (*Service)(nil)

// Service wires the sink to its recorders and exposes the summary as the
// get_kpi_summary capability.
type Service struct {
	*Sink

	aggregator *Aggregator
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	capabilities := do.MustInvoke[*capability.Service](di)

	aggregator := NewAggregator(defaultWindow)
	recorders := []Recorder{aggregator}

	if cfg.KPI.Dir != "" {
		jsonl, err := NewJSONLRecorder(cfg.KPI.Dir)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, jsonl)
	}

	s := &Service{
		Sink:       NewSink(cfg.KPI.Buffer, recorders...),
		aggregator: aggregator,
	}

	if err := capabilities.BindDefault(capability.GetKPISummary, SummaryTool(aggregator)); err != nil {
		return nil, fmt.Errorf("failed to bind kpi capability: %w", err)
	}

	return s, nil
}

func (s *Service) Summary(userID string) Summary {
	return s.aggregator.Summary(userID)
}

func (s *Service) Shutdown() error {
	s.Close()

	return nil
}

// SummaryTool serves the aggregator summary as a capability.
func SummaryTool(aggregator *Aggregator) tools.Tool {
	return capability.Typed(capability.GetKPISummary, "kpi summary",
		func(_ context.Context, args capability.KPISummaryArgs) (any, error) {
			return aggregator.Summary(args.UserID), nil
		})
}
