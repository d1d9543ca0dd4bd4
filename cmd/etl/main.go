// Command etl runs the air-quality extract-normalize-load pipeline: it
// fetches hourly readings for the configured cities, derives pollution-risk
// metrics, and persists canonical records into PostgreSQL.
//
// By default it performs one run and exits. With RUN_INTERVAL set it stays
// up and re-runs on that interval. With -replay it skips extraction and
// re-processes a previous run's staged raw artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/hazewatch/air-quality-etl/internal/adapter/http"
	kafkaadapter "github.com/hazewatch/air-quality-etl/internal/adapter/kafka"
	"github.com/hazewatch/air-quality-etl/internal/config"
	"github.com/hazewatch/air-quality-etl/internal/extract"
	"github.com/hazewatch/air-quality-etl/internal/load"
	"github.com/hazewatch/air-quality-etl/internal/normalize"
	"github.com/hazewatch/air-quality-etl/internal/observability"
	"github.com/hazewatch/air-quality-etl/internal/pipeline"
	"github.com/hazewatch/air-quality-etl/internal/scheduler"
	"github.com/hazewatch/air-quality-etl/internal/source"
	"github.com/hazewatch/air-quality-etl/internal/staging"
)

func main() {
	replayRun := flag.String("replay", "", "re-run normalize and load from a previous run's staging artifacts (run ID)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open store pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := load.Migrate(ctx, pool); err != nil {
		logger.Error("store migration failed", "error", err)
		os.Exit(1)
	}

	store := staging.NewStore(cfg.StagingDir)
	clock := clockwork.NewRealClock()

	primary := source.NewClient("primary", cfg.PrimarySourceURL, cfg.SourceTimeout, metrics, logger)
	secondary := source.NewClient("secondary", cfg.SecondarySourceURL, cfg.SourceTimeout, metrics, logger)

	extractor := extract.New(primary, secondary, extract.Policy{
		MaxAttempts:    cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}, store, clock, logger, metrics)

	normalizer := normalize.New(cfg.Policy(), logger, metrics)
	loader := load.New(pool, cfg.LoadBatchSize, cfg.LoadMaxRetries, logger, metrics)

	// Kafka publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaPub
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(pipeline.Options{
		Cities:      cfg.CityList,
		WindowHours: cfg.WindowHours,
		Concurrency: cfg.Concurrency,
	}, extractor, normalizer, loader, publisher, store, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	switch {
	case *replayRun != "":
		if _, err := p.Replay(ctx, *replayRun); err != nil {
			logger.Error("replay failed", "run_id", *replayRun, "error", err)
		}

	case cfg.RunInterval > 0:
		runOnce := func(ctx context.Context) {
			if _, err := p.Run(ctx); err != nil {
				logger.Error("pipeline run failed", "error", err)
			}
		}
		runOnce(ctx)

		sched := scheduler.New(cfg.RunInterval, runOnce, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Error("scheduler start failed", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()

		<-ctx.Done()

	default:
		if _, err := p.Run(ctx); err != nil {
			logger.Error("pipeline run failed", "error", err)
		}
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
