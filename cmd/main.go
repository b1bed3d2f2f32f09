package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fredericrous/texto-diagrama/internal/ai"
	"github.com/fredericrous/texto-diagrama/internal/config"
	"github.com/fredericrous/texto-diagrama/internal/diagram"
	"github.com/fredericrous/texto-diagrama/internal/metrics"
	"github.com/fredericrous/texto-diagrama/internal/pipeline"
	"github.com/fredericrous/texto-diagrama/internal/server"
	"github.com/fredericrous/texto-diagrama/internal/session"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Log.Logger())

	slog.Info("texto-diagrama starting",
		"port", cfg.Server.Port,
		"provider", cfg.AI.Provider,
		"aiConfigured", cfg.AI.APIKey != "",
		"fallback", cfg.Pipeline.Fallback,
		"persistent", cfg.Session.DSN != "",
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	client, err := ai.New(ctx, cfg.AI)
	if err != nil {
		return err
	}
	if _, disabled := client.(ai.Disabled); disabled {
		slog.Warn("no AI API key configured, using keyword heuristic only")
	}

	store, err := session.Open(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p := pipeline.New(cfg.Pipeline, client, store, metrics.New(reg), diagram.NewTitler(nil))

	go session.Sweep(ctx, store, cfg.Session.TTL, cfg.Session.SweepInterval)

	return server.New(cfg.Server, p, reg).Start(ctx)
}
