// Package pipeline derives, forecasts, and persists per-city AQI results
// from the raw observation store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rcmukkamala/aqi-pipeline/internal/anomaly"
	"github.com/rcmukkamala/aqi-pipeline/internal/notify"
	"github.com/rcmukkamala/aqi-pipeline/internal/store"
	"github.com/rcmukkamala/aqi-pipeline/pkg/config"
)

// Store is the full store surface one run needs.
type Store interface {
	RawFetcher
	DiscoverCities(ctx context.Context, since time.Time, pageSize int) ([]string, error)
	ResultColumns(ctx context.Context) (map[string]struct{}, error)
	UpsertResult(ctx context.Context, row map[string]any) error
	InsertResult(ctx context.Context, row map[string]any) error
}

// Notifier receives the anomalous cities of a run.
type Notifier interface {
	SendAnomalyDigest(events []notify.AnomalyEvent) error
}

// Pipeline orchestrates one batch run: discover the destination schema,
// discover the active city set, process each city, write the results.
type Pipeline struct {
	store     Store
	processor *Processor
	cache     *ResultCache // optional
	notifier  Notifier     // optional
	cfg       config.PipelineConfig
	log       *slog.Logger
	now       func() time.Time
}

func New(st Store, models ModelSource, cache *ResultCache, notifier Notifier, cfg config.PipelineConfig, log *slog.Logger) *Pipeline {
	detector := anomaly.NewDetector(cfg.MinHistory, cfg.ZScoreThreshold, cfg.Contamination)
	return &Pipeline{
		store:     st,
		processor: NewProcessor(st, models, detector, log),
		cache:     cache,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Run executes one full batch. A single city's failure never aborts the
// batch, and a single row's write failure never drops the others.
func (p *Pipeline) Run(ctx context.Context) error {
	log := p.log.With("run", uuid.New().String()[:8])
	log.Info("starting AQI pipeline")

	destCols, err := p.store.ResultColumns(ctx)
	if err != nil {
		log.Warn("schema discovery failed, using fallback column set", "error", err)
		destCols = store.FallbackResultColumns
	}

	since := p.now().UTC().Add(-p.cfg.Lookback)

	cities, err := p.store.DiscoverCities(ctx, since, p.cfg.CityPageSize)
	if err != nil {
		return fmt.Errorf("could not fetch city list: %w", err)
	}
	if len(cities) == 0 {
		log.Warn("no cities with recent data found to process")
		return nil
	}
	log.Info("discovered cities with recent data", "count", len(cities))

	var results []*ResultRow
	for _, city := range cities {
		log.Info("processing city", "city", city)
		row, err := p.processCity(ctx, city, since)
		if err != nil {
			log.Error("processing failed", "city", city, "error", err)
			continue
		}
		if row != nil {
			results = append(results, row)
		}
	}

	if len(results) == 0 {
		log.Info("no rows to write")
		return nil
	}

	written := 0
	for _, row := range results {
		record := row.Filtered(destCols)
		if err := p.writeRow(ctx, log, row.City, record); err != nil {
			log.Error("dropping result row", "city", row.City, "error", err)
			continue
		}
		written++
		p.cacheRow(ctx, log, row.City, record)
	}
	log.Info("pipeline complete", "cities", len(cities), "written", written)

	p.sendDigest(log, results)
	return nil
}

// processCity isolates a city run, converting panics into errors so one
// city cannot take down the batch.
func (p *Pipeline) processCity(ctx context.Context, city string, since time.Time) (row *ResultRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", city, r)
		}
	}()
	return p.processor.ProcessCity(ctx, city, since)
}

// writeRow attempts the idempotent upsert, then exactly one plain insert.
func (p *Pipeline) writeRow(ctx context.Context, log *slog.Logger, city string, record map[string]any) error {
	err := p.store.UpsertResult(ctx, record)
	if err == nil {
		log.Info("upserted result", "city", city)
		return nil
	}
	log.Warn("upsert failed, trying insert", "city", city, "error", err)
	if err := p.store.InsertResult(ctx, record); err != nil {
		return err
	}
	log.Info("inserted result", "city", city)
	return nil
}

func (p *Pipeline) cacheRow(ctx context.Context, log *slog.Logger, city string, record map[string]any) {
	if p.cache == nil {
		return
	}
	if err := p.cache.StoreLatest(ctx, city, record); err != nil {
		log.Warn("failed to cache latest result", "city", city, "error", err)
	}
}

func (p *Pipeline) sendDigest(log *slog.Logger, results []*ResultRow) {
	if p.notifier == nil {
		return
	}
	var events []notify.AnomalyEvent
	for _, row := range results {
		if row.Anomaly != anomaly.Anomalous {
			continue
		}
		events = append(events, notify.AnomalyEvent{
			City:     row.City,
			AQI:      row.AQI,
			Category: row.Category,
			Dominant: row.Dominant,
			At:       row.DatetimeUTC,
		})
	}
	if len(events) == 0 {
		return
	}
	if err := p.notifier.SendAnomalyDigest(events); err != nil {
		log.Warn("failed to send anomaly digest", "error", err)
	}
}
