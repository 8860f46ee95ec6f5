package pipeline

import (
	"math"
	"time"

	"github.com/rcmukkamala/aqi-pipeline/internal/anomaly"
	"github.com/rcmukkamala/aqi-pipeline/internal/aqi"
)

// ResultRow is the fully-typed output of one city run. The destination's
// column set is discovered at runtime, so rows pass through Filtered before
// serialization: the accessor table below is the single place field names
// are bound to values.
type ResultRow struct {
	City        string
	DatetimeUTC time.Time
	DatetimeIST time.Time
	InsertedAt  time.Time

	SubIndices map[aqi.Pollutant]float64
	AQI        float64
	Category   string
	Dominant   string

	Anomaly anomaly.Verdict

	// Predictions are keyed by destination column (aqi_1h_pred etc.) and hold
	// only the horizons that actually produced a value.
	Predictions          map[string]float64
	PredictionCategories map[string]string

	// LatestRaw carries the most recent raw concentration per pollutant for
	// display context.
	LatestRaw map[aqi.Pollutant]float64
}

// fieldValue returns the serialized value for a destination column and
// whether the row carries that column at all. Absent numeric values (NaN)
// serialize as nil, not zero; horizons without a prediction are absent.
func (r *ResultRow) fieldValue(name string) (any, bool) {
	switch name {
	case "city":
		return r.City, true
	case "datetime_utc":
		return r.DatetimeUTC, true
	case "datetime_ist":
		return r.DatetimeIST, true
	case "inserted_at":
		return r.InsertedAt, true
	case "aqi":
		return nilIfNaN(r.AQI), true
	case "aqi_category":
		return nilIfEmpty(r.Category), true
	case "dominant_pollutant":
		return nilIfEmpty(r.Dominant), true
	case "anomaly":
		// Tri-state: NULL means undetermined, not normal.
		if b := r.Anomaly.Bool(); b != nil {
			return *b, true
		}
		return nil, true
	}

	for _, p := range aqi.Pollutants {
		if name == aqi.IndexColumn(p) {
			return nilIfNaN(r.SubIndices[p]), true
		}
		if name == "latest_"+string(p) {
			v, ok := r.LatestRaw[p]
			if !ok {
				return nil, false
			}
			return nilIfNaN(v), true
		}
	}

	if v, ok := r.Predictions[name]; ok {
		return v, true
	}
	if c, ok := r.PredictionCategories[name]; ok {
		return nilIfEmpty(c), true
	}
	return nil, false
}

// columns every row can offer, used to drive Filtered.
var resultColumns = func() []string {
	cols := []string{
		"city", "datetime_utc", "datetime_ist", "inserted_at",
		"aqi", "aqi_category", "dominant_pollutant", "anomaly",
	}
	for _, p := range aqi.Pollutants {
		cols = append(cols, aqi.IndexColumn(p), "latest_"+string(p))
	}
	for _, h := range horizons {
		cols = append(cols, h.column, h.column+"_category")
	}
	return cols
}()

// Filtered serializes the row to a column map restricted to the destination's
// discovered column set. Keys absent from the destination are never emitted.
func (r *ResultRow) Filtered(dest map[string]struct{}) map[string]any {
	out := make(map[string]any)
	for _, col := range resultColumns {
		if _, ok := dest[col]; !ok {
			continue
		}
		if v, present := r.fieldValue(col); present {
			out[col] = v
		}
	}
	return out
}

func nilIfNaN(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
