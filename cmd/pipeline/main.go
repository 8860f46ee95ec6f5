package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"

	"github.com/rcmukkamala/aqi-pipeline/internal/model"
	"github.com/rcmukkamala/aqi-pipeline/internal/notify"
	"github.com/rcmukkamala/aqi-pipeline/internal/pipeline"
	"github.com/rcmukkamala/aqi-pipeline/internal/schedule"
	"github.com/rcmukkamala/aqi-pipeline/internal/store"
	"github.com/rcmukkamala/aqi-pipeline/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	once := flag.Bool("once", false, "run a single batch and exit")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	log := newLogger(*verbose)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := connectWithRetry(cfg.Database.ConnectionString(), log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("connected to database")

	registry := model.NewRegistry(cfg.Pipeline.ModelsDir, log)
	models := model.NewCache(registry, cfg.Pipeline.ModelCacheTTL)
	defer models.Stop()

	var cache *pipeline.ResultCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cache = pipeline.NewResultCache(rdb, cfg.Redis.ResultTTL)
		log.Info("result caching enabled", "addr", cfg.Redis.Addr)
	}

	var notifier pipeline.Notifier
	if cfg.SMTP.Enabled() {
		notifier = notify.NewEmailNotifier(&cfg.SMTP)
		log.Info("anomaly digest emails enabled", "to", cfg.SMTP.To)
	}

	pipe := pipeline.New(db, models, cache, notifier, cfg.Pipeline, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		return pipe.Run(ctx)
	}

	scheduler := schedule.New()
	defer scheduler.Stop()
	scheduleHourlyRun(ctx, scheduler, pipe, cfg.Pipeline.HourlyDelay, log)

	log.Info("AQI pipeline service is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down gracefully")
	return nil
}

func scheduleHourlyRun(ctx context.Context, s *schedule.Scheduler, pipe *pipeline.Pipeline, delay time.Duration, log *slog.Logger) {
	const taskID = "hourly-pipeline"

	var scheduleNext func()
	scheduleNext = func() {
		nextRun := schedule.NextHourly(time.Now(), delay)
		log.Info("next pipeline run scheduled", "at", nextRun.Format(time.RFC3339))

		err := s.Schedule(taskID, nextRun, func() {
			if err := pipe.Run(ctx); err != nil {
				log.Error("pipeline run failed", "error", err)
			}
			scheduleNext()
		})
		if err != nil {
			log.Error("failed to schedule pipeline run", "error", err)
		}
	}

	scheduleNext()
}

func connectWithRetry(dsn string, log *slog.Logger) (*store.DB, error) {
	var db *store.DB
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	err := backoff.Retry(func() error {
		var err error
		db, err = store.Connect(dsn)
		if err != nil {
			log.Warn("database not ready, retrying", "error", err)
		}
		return err
	}, policy)
	return db, err
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}
