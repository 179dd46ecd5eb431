package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/flood-watch/internal/adapter/http"
	"github.com/couchcryptid/flood-watch/internal/adapter/jsonfile"
	kafkaadapter "github.com/couchcryptid/flood-watch/internal/adapter/kafka"
	"github.com/couchcryptid/flood-watch/internal/adapter/openmeteo"
	redisadapter "github.com/couchcryptid/flood-watch/internal/adapter/redis"
	"github.com/couchcryptid/flood-watch/internal/adapter/sqlite"
	"github.com/couchcryptid/flood-watch/internal/config"
	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/observability"
	"github.com/couchcryptid/flood-watch/internal/refresh"
	"github.com/couchcryptid/flood-watch/internal/zones"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, repoCloser, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("zone repository ready", "backend", cfg.StoreBackend)

	// Zone events are feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher zones.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = writer
		logger.Info("zone events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("zone events disabled")
	}

	engine := domain.NewRiskEngine(cfg.Thresholds())
	store, err := zones.Open(ctx, repo, engine, publisher, logger, metrics)
	if err != nil {
		_ = repoCloser.Close()
		return fmt.Errorf("open zone store: %w", err)
	}

	client := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimezone, cfg.WeatherFetchTimeout, clock, metrics, logger)
	source := openmeteo.NewCachedClient(client, cfg.WeatherCacheTTL, clock, metrics)

	scheduler := refresh.New(source, store, refresh.Options{
		Interval:     cfg.RefreshInterval,
		Concurrency:  cfg.RefreshConcurrency,
		FetchTimeout: cfg.WeatherFetchTimeout,
	}, clock, logger, metrics)

	ready := readiness{scheduler}
	if c, ok := repoCloser.(sharedobs.ReadinessChecker); ok {
		ready = append(ready, c)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, store, scheduler, cfg.StaleAfter(), logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start refresh loop.
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("refresh scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	flushOnShutdown(shutdownCtx, schedulerDone, store, repoCloser, logger)
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// flusher is the part of zones.Store needed at shutdown.
type flusher interface {
	Close(ctx context.Context) error
}

// flushOnShutdown waits for the refresh loop, flushes the store and closes
// the repository. If the deadline passes first the store and repository are
// left open, since the running cycle still saves through them. Returns true
// when the flush ran.
func flushOnShutdown(ctx context.Context, schedulerDone <-chan struct{}, store flusher, repo io.Closer, logger *slog.Logger) bool {
	select {
	case <-schedulerDone:
	case <-ctx.Done():
		logger.Warn("refresh cycle still running at shutdown deadline, skipping store flush")
		return false
	}

	if err := store.Close(ctx); err != nil {
		logger.Error("zone store flush error", "error", err)
	}
	if err := repo.Close(); err != nil {
		logger.Error("zone repository close error", "error", err)
	}
	return true
}

// openRepository builds the configured zone repository. The closer releases
// its connection; for the file backend it is a no-op.
func openRepository(ctx context.Context, cfg *config.Config) (zones.Repository, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	case config.BackendRedis:
		repo, err := redisadapter.Connect(ctx, cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	default:
		return jsonfile.NewRepository(cfg.StorePath), io.NopCloser(nil), nil
	}
}

// readiness is ready when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
