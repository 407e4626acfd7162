package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/passportflow/internal/api"
	"github.com/dunamismax/passportflow/internal/config"
	"github.com/dunamismax/passportflow/internal/preview"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/dunamismax/passportflow/internal/queue"
	"github.com/dunamismax/passportflow/internal/ratelimit"
	"github.com/dunamismax/passportflow/internal/storage"
	"github.com/dunamismax/passportflow/internal/store"
	"github.com/dunamismax/passportflow/internal/telemetry"
	"github.com/dunamismax/passportflow/internal/wizard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("PASSPORTFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(cfg.Logging, os.Stderr, "api")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api failed")
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

	if err := preview.Startup(logger); err != nil {
		return fmt.Errorf("start preview runtime: %w", err)
	}
	defer preview.Shutdown()

	registry := prometheus.NewRegistry()
	client, err := processing.NewClient(processing.Config{
		BaseURL:    cfg.Collaborator.BaseURL,
		PathPrefix: cfg.Collaborator.PathPrefix,
		Timeout:    cfg.Collaborator.Timeout(),
		Logger:     logger,
		Registerer: registry,
	})
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Session.Backend == config.SessionBackendRedis || (cfg.RateLimit.Enabled && cfg.Session.Backend != config.SessionBackendMemory) {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()
	}

	snapshots, activity, closeStore, err := openSessionStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeStore()

	previews, err := openPreviewCache(ctx, cfg, logger)
	if err != nil {
		return err
	}

	manager, err := wizard.NewManager(snapshots, wizard.Options{
		Service:     client,
		Previews:    previews,
		NoWatermark: !cfg.Collaborator.Watermark,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go manager.RunEviction(evictCtx, cfg.Session.TTL(), evictionInterval(cfg.Session.TTL()))

	limiter, err := openRateLimiter(cfg, redisClient)
	if err != nil {
		return err
	}

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn().Err(err).Msg("queue client close failed")
		}
	}()

	app, err := api.NewServer(api.Options{
		Logger:          logger,
		Sessions:        manager,
		PreviewMaxEdge:  cfg.Preview.MaxEdge,
		Exports:         queueClient,
		Activity:        activity,
		RateLimiter:     limiter,
		RateLimitHeader: cfg.RateLimit.SubjectHeader,
		Registry:        registry,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Collaborator.Timeout() + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.API.Addr).
			Str("session_backend", cfg.Session.Backend).
			Str("preview_backend", cfg.Preview.Backend).
			Str("collaborator", cfg.Collaborator.BaseURL).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}

// evictionInterval sweeps a few times per TTL, at least every five minutes.
func evictionInterval(ttl time.Duration) time.Duration {
	return max(min(ttl/4, 5*time.Minute), time.Second)
}

func openSessionStore(ctx context.Context, cfg config.Config, redisClient *redis.Client) (wizard.SnapshotStore, store.ActivityLog, func(), error) {
	noop := func() {}
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		snapshots, err := store.NewRedisSessionStore(redisClient, cfg.Session.TTL(), "")
		if err != nil {
			return nil, nil, noop, err
		}
		return snapshots, store.NewMemoryActivityLog(), noop, nil
	case config.SessionBackendPostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, noop, err
		}
		return pg, pg, func() { _ = pg.Close() }, nil
	default:
		return store.NewMemorySessionStore(), store.NewMemoryActivityLog(), noop, nil
	}
}

func openPreviewCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) (preview.Cache, error) {
	if cfg.Preview.Backend != config.PreviewBackendObject {
		return preview.NewMemoryCache(), nil
	}
	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	// Previews are only read while their session lives.
	days := int(math.Ceil(cfg.Session.TTL().Hours() / 24))
	if err := objects.ExpirePrefix(ctx, cfg.Preview.Prefix, days); err != nil {
		logger.Warn().Err(err).Str("prefix", cfg.Preview.Prefix).Msg("preview expiry not installed")
	}
	return preview.NewObjectCache(objects, cfg.Preview.Prefix)
}

// openRateLimiter returns nil when limiting is off. Shared session backends
// imply several replicas, so their buckets live in redis.
func openRateLimiter(cfg config.Config, redisClient *redis.Client) (api.RateLimiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	if redisClient != nil {
		return ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window(), "")
	}
	return ratelimit.NewLocalTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.Window())
}
