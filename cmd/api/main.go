// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/fundscope/fundscope/internal/api"
	"github.com/fundscope/fundscope/internal/catalog"
	"github.com/fundscope/fundscope/internal/config"
	"github.com/fundscope/fundscope/internal/health"
	"github.com/fundscope/fundscope/internal/ingest"
	"github.com/fundscope/fundscope/internal/match"
	"github.com/fundscope/fundscope/internal/middleware"
	"github.com/fundscope/fundscope/internal/profile"
	"github.com/fundscope/fundscope/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Fundscope API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
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
		ServiceName:  "fundscope-api",
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

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		profileRepo profile.Repository
		catalogRepo catalog.Repository
		dbChecker   api.HealthChecker
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
		dbChecker = health.NewDBChecker(db)
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory stores")
		profileRepo = profile.NewInMemoryRepository()
		catalogRepo = catalog.NewInMemoryRepository()
	}

	// Redis: snapshot cache + refresh lock, both optional.
	var (
		snapshotCache *catalog.SnapshotCache
		refreshLock   *ingest.RefreshLock
		redisChecker  api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		snapshotCache = catalog.NewSnapshotCache(client, time.Duration(cfg.SnapshotTTLSec)*time.Second, logger)
		refreshLock = ingest.NewRefreshLock(client, 10*time.Minute, logger)
		redisChecker = health.NewRedisChecker(client)
	}

	weights, err := match.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("using default scoring weights", "error", err)
	}

	// nil interface values must stay nil, not typed-nil wrappers.
	var cacheSource match.SnapshotSource
	if snapshotCache != nil {
		cacheSource = snapshotCache
	}
	engine := match.NewEngine(profileRepo, catalogRepo, cacheSource, weights, logger)

	var locker ingest.Locker
	if refreshLock != nil {
		locker = refreshLock
	}
	var invalidator ingest.Invalidator
	if snapshotCache != nil {
		invalidator = snapshotCache
	}

	registry := prometheus.NewRegistry()
	promMetrics := ingest.NewPromMetrics()
	if err := promMetrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}

	pipeline := ingest.NewPipeline(
		buildProducers(cfg, logger),
		catalogRepo, profileRepo, locker, invalidator, promMetrics, logger,
		ingest.Config{
			RetentionHorizon: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
			UpsertWorkers:    cfg.UpsertWorkers,
			FetchTimeout:     time.Duration(cfg.FetchTimeoutSec) * time.Second,
		})

	matchHandlers := api.NewMatchHandlers(engine)
	profileHandlers := api.NewProfileHandlers(profileRepo)
	refreshHandlers := api.NewRefreshHandlers(pipeline, logger)
	healthHandlers := api.NewHealthHandlers(dbChecker, redisChecker)

	mux := http.NewServeMux()
	mux.HandleFunc("/grants/match", matchHandlers.MatchGrants)
	mux.HandleFunc("/news/match", matchHandlers.MatchNews)
	mux.HandleFunc("/profiles/", profileHandlers.Handle)
	mux.HandleFunc("/refresh", refreshHandlers.Refresh)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", api.InternalAuthMiddleware(cfg.MetricsToken)(api.MetricsHandler(registry)))

	// Apply middleware: RequestID -> Tracing -> Logging -> CORS -> HTTPMetrics
	handler := middleware.RequestID(
		middleware.Tracing("fundscope-api")(
			middleware.Logging(logger)(
				middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins))(
					middleware.HTTPMetrics(httpMetrics)(mux)))))

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildProducers turns the configured source registry into producers.
func buildProducers(cfg *config.Config, logger *slog.Logger) []ingest.Producer {
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
	return producers
}
