package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/rcmukkamala/aqi-pipeline/internal/anomaly"
	"github.com/rcmukkamala/aqi-pipeline/internal/aqi"
	"github.com/rcmukkamala/aqi-pipeline/internal/model"
	"github.com/rcmukkamala/aqi-pipeline/internal/store"
)

// horizons maps forecast lead times to their destination columns.
var horizons = []struct {
	key    string
	column string
}{
	{"h1", "aqi_1h_pred"},
	{"h2", "aqi_2h_pred"},
	{"h3", "aqi_3h_pred"},
}

// RawFetcher is the raw-store read surface the processor needs.
type RawFetcher interface {
	FetchCityWindow(ctx context.Context, city string, since time.Time) ([]store.RawObservation, error)
}

// ModelSource resolves a forecasting model for a (city, horizon) pair,
// returning nil when none is available.
type ModelSource interface {
	Load(city, horizon string) model.Model
}

// istZone is the display timezone for datetime_ist.
var istZone = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}()

// Processor runs the per-city portion of a pipeline run: window fetch, AQI
// block, feature engineering, per-horizon forecasts, anomaly detection, and
// result assembly.
type Processor struct {
	fetcher  RawFetcher
	models   ModelSource
	detector *anomaly.Detector
	log      *slog.Logger
	now      func() time.Time
}

func NewProcessor(fetcher RawFetcher, models ModelSource, detector *anomaly.Detector, log *slog.Logger) *Processor {
	return &Processor{
		fetcher:  fetcher,
		models:   models,
		detector: detector,
		log:      log,
		now:      time.Now,
	}
}

// ProcessCity produces the result row for one city, or nil when the city has
// nothing to contribute this run: no recent rows, or no horizon produced a
// prediction. Neither is an error.
func (p *Processor) ProcessCity(ctx context.Context, city string, since time.Time) (*ResultRow, error) {
	rows, err := p.fetcher.FetchCityWindow(ctx, city, since)
	if err != nil {
		return nil, fmt.Errorf("fetch window: %w", err)
	}
	if len(rows) == 0 {
		p.log.Info("no rows in lookback window", "city", city)
		return nil, nil
	}

	// Rolling features and "latest row" semantics depend on ascending order.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DatetimeUTC.Before(rows[j].DatetimeUTC)
	})

	blocks := aqi.ComputeBlock(rows)
	features := aqi.EngineerFeatures(rows, blocks)
	if len(features.Columns) == 0 {
		p.log.Warn("no numeric columns to aggregate", "city", city)
		return nil, nil
	}

	// One aggregated feature vector for the whole window, plus the one-hot
	// city indicator used by training-time dummy encoding.
	frame := model.Frame{
		Columns: append([]string(nil), features.Columns...),
		Values:  features.ColumnMeans(),
	}
	frame.Set("city_"+city, 1)

	predictions := make(map[string]float64)
	categories := make(map[string]string)
	for _, h := range horizons {
		m := p.models.Load(city, h.key)
		if m == nil {
			p.log.Info("no model for horizon", "city", city, "horizon", h.key)
			continue
		}
		aligned := model.AlignFeatures(frame, m)
		yhat, err := m.Predict(aligned)
		if err != nil {
			p.log.Warn("prediction failed", "city", city, "horizon", h.key, "error", err)
			continue
		}
		clamped := math.Max(0, yhat)
		predictions[h.column] = clamped
		categories[h.column+"_category"] = aqi.Category(clamped)
	}
	if len(predictions) == 0 {
		p.log.Warn("no predictions produced", "city", city)
		return nil, nil
	}

	var aqiSeries []float64
	for _, b := range blocks {
		if !math.IsNaN(b.AQI) {
			aqiSeries = append(aqiSeries, b.AQI)
		}
	}
	verdict := p.detector.Detect(aqiSeries)

	latest := rows[len(rows)-1]
	latestBlock := blocks[len(blocks)-1]

	return &ResultRow{
		City:        city,
		DatetimeUTC: latest.DatetimeUTC.UTC(),
		DatetimeIST: latest.DatetimeUTC.In(istZone),
		InsertedAt:  p.now().UTC(),
		SubIndices:  latestBlock.Sub,
		AQI:         latestBlock.AQI,
		Category:    latestBlock.Category,
		Dominant:    latestBlock.Dominant,
		Anomaly:     verdict,

		Predictions:          predictions,
		PredictionCategories: categories,

		LatestRaw: map[aqi.Pollutant]float64{
			aqi.PM25:            latest.PM25,
			aqi.PM10:            latest.PM10,
			aqi.NitrogenDioxide: latest.NitrogenDioxide,
			aqi.SulphurDioxide:  latest.SulphurDioxide,
			aqi.CarbonMonoxide:  latest.CarbonMonoxide,
			aqi.Ozone:           latest.Ozone,
		},
	}, nil
}
