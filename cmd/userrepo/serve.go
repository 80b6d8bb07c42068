package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"userrepo/internal/app"
	"userrepo/internal/config"
	"userrepo/internal/http/server"
	"userrepo/internal/metrics"
	"userrepo/internal/otel"
)

func newServeCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server", "http"},
		Short:   "Open the configured backend and serve health and metrics until interrupted",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, d)
			if err != nil {
				return err
			}
			slog.SetDefault(log)
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) error {
	shutdownTracing, err := otel.Init(ctx, cfg.ServiceName, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error("tracing_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.NewPrometheus(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	log.Info("starting", slog.String("backend", cfg.Backend()))
	users, err := app.New(ctx, cfg, app.WithLogger(log), app.WithMetrics(rec))
	if err != nil {
		return err
	}
	defer users.Close()

	srv, err := server.New(cfg.Ops, log, users, string(users.Kind()), reg)
	if err != nil {
		return fmt.Errorf("build ops server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting_down", slog.Duration("timeout", cfg.Ops.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
