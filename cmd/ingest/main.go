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

	"github.com/rcmukkamala/aqi-pipeline/internal/ingest"
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

	consumer := ingest.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicObservations, cfg.Kafka.GroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := ingest.NewBatchWriter(consumer, db, cfg.Kafka.BatchSize, cfg.Kafka.FlushInterval, log)
	writer.Start(ctx)
	log.Info("observation ingest is running",
		"topic", cfg.Kafka.TopicObservations, "group", cfg.Kafka.GroupID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down gracefully")
	cancel()
	writer.Stop()
	return nil
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
