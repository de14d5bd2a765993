package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maraichr/execsearch/internal/config"
	"github.com/maraichr/execsearch/internal/indexer"
	"github.com/maraichr/execsearch/internal/lock"
	"github.com/maraichr/execsearch/internal/search"
	"github.com/maraichr/execsearch/internal/source/stepfunctions"
	"github.com/maraichr/execsearch/internal/store"
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

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	s := store.New(pool)

	esClient, err := search.NewClient(cfg.Elasticsearch)
	if err != nil {
		logger.Error("failed to init elasticsearch client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	src, err := stepfunctions.New(cfg.StepFunctions)
	if err != nil {
		logger.Error("failed to init step functions client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

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

	leases := lock.NewValkeyLeaseStore(vkClient)
	runner := indexer.NewRunner(ix, leases, s, cfg.Sync.LeaseKey, cfg.Sync.LeaseTTL, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting sync daemon",
		slog.Duration("interval", cfg.Sync.Interval),
		slog.String("stream", cfg.Sync.Stream))

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	runCycle(ctx, runner, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("sync daemon stopped")
			return
		case <-ticker.C:
			runCycle(ctx, runner, logger)
		}
	}
}

func runCycle(ctx context.Context, runner *indexer.Runner, logger *slog.Logger) {
	result, err := runner.RunOnce(ctx, nil)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			logger.Info("another sync holds the lease, skipping tick")
			return
		}
		logger.Error("sync cycle failed", slog.String("error", err.Error()))
		return
	}
	if result == nil {
		return
	}

	total := 0
	for _, count := range result.IndexedCounts() {
		total += count
	}
	logger.Info("sync cycle finished",
		slog.Int("indexed", total),
		slog.Int("failed_partitions", len(result.FailedPartitions())),
		slog.Bool("advanced", result.Advanced))
}
