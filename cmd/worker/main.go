package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/passportflow/internal/config"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/dunamismax/passportflow/internal/storage"
	"github.com/dunamismax/passportflow/internal/store"
	"github.com/dunamismax/passportflow/internal/telemetry"
	"github.com/dunamismax/passportflow/internal/webhook"
	"github.com/dunamismax/passportflow/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("PASSPORTFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(cfg.Logging, os.Stderr, "worker")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker failed")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	client, err := processing.NewClient(processing.Config{
		BaseURL:    cfg.Collaborator.BaseURL,
		PathPrefix: cfg.Collaborator.PathPrefix,
		Timeout:    cfg.Collaborator.Timeout(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	deps := worker.Deps{
		Downloader: client,
		Objects:    objects,
		Webhooks: webhook.NewClient(webhook.Config{
			SigningSecret:  cfg.Webhook.SigningSecret,
			Timeout:        cfg.Webhook.Timeout(),
			MaxAttempts:    cfg.Webhook.MaxAttempts,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Logger:         logger,
		}),
	}
	if cfg.Session.Backend == config.SessionBackendPostgres {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		deps.Activity = pg
	}

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, deps)
	if err != nil {
		return err
	}

	if metricsAddr := cfg.Worker.MetricsAddr; metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", srv.MetricsHandler())
		go func() {
			logger.Info().Str("addr", metricsAddr).Msg("serving worker metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	logger.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Str("queue", cfg.Queue.Name).
		Str("redis", cfg.Queue.RedisAddr).
		Str("bucket", objects.Bucket()).
		Msg("starting worker")
	return srv.Run()
}
