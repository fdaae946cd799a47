package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"agrosmi/app/api"
	"agrosmi/app/config"
	"agrosmi/app/service/capability"
	"agrosmi/app/service/chat"
	"agrosmi/app/service/decision"
	"agrosmi/app/service/engine"
	"agrosmi/app/service/history"
	"agrosmi/app/service/kpi"
	"agrosmi/app/service/orchestrator"
	"agrosmi/app/service/policy"
	"agrosmi/app/service/responder"
	"agrosmi/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, capability.New)
	do.Provide(di, kpi.New)
	do.Provide(di, policy.New)
	do.Provide(di, responder.New)
	do.Provide(di, decision.New)
	do.Provide(di, history.New)
	do.Provide(di, orchestrator.New)
	do.Provide(di, chat.New)
	do.Provide(di, api.New)
	do.Provide(di, engine.New)

	engineSvc, err := do.Invoke[*engine.Service](di)
	if err != nil {
		log.Fatalf("service init failed: %v", err)
	}

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	if err = engineSvc.Run(appCtx); err != nil {
		slog.Error("Engine stopped", "error", err, mylog.Alert())
	}
}
