package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agrosmi/app/api"
	"agrosmi/app/service/kpi"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP surface run by the engine.
type Server interface {
	Listen() error
	Shutdown(ctx context.Context) error
}

// Worker is a background loop bound to the engine context.
type Worker interface {
	Run(ctx context.Context)
}

type Service struct {
	server Server
	sink   Worker
}

func NewService(server Server, sink Worker) *Service {
	return &Service{
		server: server,
		sink:   sink,
	}
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*api.Server](di),
		do.MustInvoke[*kpi.Service](di),
	), nil
}

// Run serves until ctx ends or the server fails, then shuts the server down
// and waits for the metrics sink to drain. The sink outlives the server so
// turns finishing during shutdown still record their events.
func (s *Service) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	sinkCtx, stopSink := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSink()

	group.Go(func() error {
		s.sink.Run(sinkCtx)
		return nil
	})

	group.Go(func() error {
		if err := s.server.Listen(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown failed", "error", err)
		}
		stopSink()

		return nil
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
