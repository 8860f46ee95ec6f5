// Package ingest moves collector observations from Kafka into the raw store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rcmukkamala/aqi-pipeline/internal/store"
)

// ObservationStore is the write surface the batch writer needs.
type ObservationStore interface {
	UpsertObservation(ctx context.Context, obs *store.RawObservation) error
}

// BatchWriter consumes observation messages from Kafka and writes them to
// the raw store in batches, flushing on size or interval. Offsets are only
// committed once the row is stored, so a crash replays rather than loses;
// the (city, datetime_utc) upsert makes the replay harmless.
type BatchWriter struct {
	consumer      *Consumer
	db            ObservationStore
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer *Consumer, db ObservationStore, batchSize int, flushInterval time.Duration, log *slog.Logger) *BatchWriter {
	return &BatchWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		log:           log,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the store
func (bw *BatchWriter) Start(ctx context.Context) {
	bw.wg.Add(1)
	go bw.run(ctx)
}

// Stop stops the batch writer gracefully
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := bw.consumer.Consume(ctx)
			if err != nil {
				select {
				case <-bw.stopCh:
					return
				case <-ctx.Done():
					return
				default:
				}
				bw.log.Error("consumer error", "error", err)
				continue
			}
			msgChan <- msg
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			if len(batch) > 0 {
				bw.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	successCount := 0
	for _, msg := range batch {
		if err := bw.processMessage(ctx, msg); err != nil {
			bw.log.Error("failed to process observation", "error", err)
			continue
		}
		successCount++

		if err := bw.consumer.Commit(ctx, msg); err != nil {
			bw.log.Error("failed to commit offset", "error", err)
		}
	}
	bw.log.Info("flushed observation batch", "total", len(batch), "written", successCount)
}

func (bw *BatchWriter) processMessage(ctx context.Context, msg kafka.Message) error {
	obsMsg, err := DecodeObservationMessage(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	if err := bw.db.UpsertObservation(ctx, obsMsg.Observation()); err != nil {
		return fmt.Errorf("failed to store observation for %s: %w", obsMsg.City, err)
	}
	return nil
}
