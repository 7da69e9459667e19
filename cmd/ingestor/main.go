// Package main is the entry point for the standalone ingestor.
//
// It runs the refresh pipeline on a fixed interval until interrupted,
// for deployments that prefer scheduled ingestion over the API's
// on-demand /refresh endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/fundscope/fundscope/internal/catalog"
	"github.com/fundscope/fundscope/internal/config"
	"github.com/fundscope/fundscope/internal/ingest"
	"github.com/fundscope/fundscope/internal/middleware"
	"github.com/fundscope/fundscope/internal/profile"
	"github.com/fundscope/fundscope/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	once := flag.Bool("once", false, "run a single refresh and exit")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Fundscope Ingestor")
		fmt.Println()
		fmt.Println("Usage: ingestor [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "fundscope-ingestor",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.Env == "development",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	var (
		profileRepo profile.Repository
		catalogRepo catalog.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		profileRepo = profile.NewPostgresRepository(db, logger)
		catalogRepo = catalog.NewPostgresRepository(db, logger)
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory stores")
		profileRepo = profile.NewInMemoryRepository()
		catalogRepo = catalog.NewInMemoryRepository()
	}

	var (
		locker      ingest.Locker
		invalidator ingest.Invalidator
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		locker = ingest.NewRefreshLock(client, 10*time.Minute, logger)
		invalidator = catalog.NewSnapshotCache(client, time.Duration(cfg.SnapshotTTLSec)*time.Second, logger)
	}

	var producers []ingest.Producer
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		switch src.Kind {
		case "rss":
			producers = append(producers, ingest.NewFeedProducer(src.Name, src.URL, src.Sector, src.MaxItems))
		case "listing":
			producers = append(producers, ingest.NewListingProducer(src.Name, src.URL, src.Selector, src.MaxItems, nil))
		default:
			logger.Warn("skipping source with unknown kind", "source", src.Name, "kind", src.Kind)
		}
	}
	if len(producers) == 0 {
		logger.Error("no enabled sources configured")
		os.Exit(1)
	}

	pipeline := ingest.NewPipeline(producers, catalogRepo, profileRepo, locker, invalidator, nil, logger,
		ingest.Config{
			RetentionHorizon: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
			UpsertWorkers:    cfg.UpsertWorkers,
			FetchTimeout:     time.Duration(cfg.FetchTimeoutSec) * time.Second,
		})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOnce(ctx, pipeline, logger)
	if *once {
		return
	}

	interval := time.Duration(cfg.RefreshIntervalMin) * time.Minute
	logger.Info("starting refresh loop", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("ingestor stopped")
			return
		case <-ticker.C:
			runOnce(ctx, pipeline, logger)
		}
	}
}

func runOnce(ctx context.Context, pipeline *ingest.Pipeline, logger *slog.Logger) {
	report, err := pipeline.Refresh(ctx)
	if err != nil {
		if errors.Is(err, ingest.ErrRefreshInProgress) {
			logger.Warn("refresh skipped, another run holds the lock")
			return
		}
		logger.Error("refresh failed", "error", err)
		return
	}
	if report.Partial {
		logger.Warn("refresh completed with failed sources", "failed", report.FailedSources)
	}
}
