package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maraichr/execsearch/internal/api"
	"github.com/maraichr/execsearch/internal/auth"
	"github.com/maraichr/execsearch/internal/config"
	"github.com/maraichr/execsearch/internal/indexer"
	"github.com/maraichr/execsearch/internal/lock"
	"github.com/maraichr/execsearch/internal/report"
	"github.com/maraichr/execsearch/internal/search"
	"github.com/maraichr/execsearch/internal/source/stepfunctions"
	"github.com/maraichr/execsearch/internal/store"
	minioclient "github.com/maraichr/execsearch/internal/store/minio"
	"github.com/maraichr/execsearch/internal/store/postgres"
	vk "github.com/maraichr/execsearch/internal/store/valkey"
)

func main() {
	_ = godotenv.Load(".env") // ignore error if .env missing

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database pool
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	s := store.New(pool)

	deps := &api.RouterDeps{Stream: cfg.Sync.Stream}

	// Elasticsearch + Step Functions (optional together, enable sync routes)
	esClient, err := search.NewClient(cfg.Elasticsearch)
	if err != nil {
		logger.Warn("elasticsearch client init failed, sync routes disabled", slog.String("error", err.Error()))
	} else {
		src, err := stepfunctions.New(cfg.StepFunctions)
		if err != nil {
			logger.Error("failed to init step functions client", slog.String("error", err.Error()))
			os.Exit(1)
		}

		marks := search.NewWatermarkStore(esClient, cfg.Sync.WatermarkIndex)
		schema := search.NewSchema(esClient,
			search.ExecutionIndexSpec(cfg.Sync.IndexName),
			search.WatermarkIndexSpec(cfg.Sync.WatermarkIndex))
		ix := indexer.New(src, esClient, schema, marks, indexer.Config{
			IndexName:       cfg.Sync.IndexName,
			Stream:          cfg.Sync.Stream,
			PageSize:        cfg.Sync.PageSize,
			Overlap:         cfg.Sync.Overlap,
			MaxPerPartition: cfg.Sync.MaxPerPartition,
		}, logger)

		// Valkey backs the single-flight lease
		vkClient, err := vk.NewClient(cfg.Valkey)
		if err != nil {
			logger.Warn("valkey connection failed, sync trigger disabled", slog.String("error", err.Error()))
		} else {
			defer vkClient.Close()
			leases := lock.NewValkeyLeaseStore(vkClient)
			deps.Runner = indexer.NewRunner(ix, leases, s, cfg.Sync.LeaseKey, cfg.Sync.LeaseTTL, logger)
			deps.Marks = marks
			logger.Info("connected to valkey")
		}

		// MinIO (optional, enables report generation)
		mc, err := minioclient.NewClient(cfg.MinIO)
		if err != nil {
			logger.Warn("minio connection failed, reports disabled", slog.String("error", err.Error()))
		} else {
			if err := mc.EnsureBucket(ctx); err != nil {
				logger.Warn("minio bucket check failed, reports disabled", slog.String("error", err.Error()))
			} else {
				deps.Reports = report.NewGenerator(src, mc, cfg.Sync.PageSize, logger)
				logger.Info("connected to minio", slog.String("bucket", mc.Bucket()))
			}
		}
	}

	// Auth (optional, requires AUTH_ENABLED=true + valid issuer URL)
	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURL == "" {
			logger.Error("AUTH_ENABLED=true but AUTH_ISSUER_URL is empty")
			os.Exit(1)
		}
		verifier, err := auth.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.Audience)
		if err != nil {
			logger.Error("failed to init OIDC verifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		deps.Verifier = verifier
		logger.Info("OIDC auth enabled", slog.String("issuer", cfg.Auth.IssuerURL))
	}

	router := api.NewRouter(logger, s, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
