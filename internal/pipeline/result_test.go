package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rcmukkamala/aqi-pipeline/internal/anomaly"
	"github.com/rcmukkamala/aqi-pipeline/internal/aqi"
)

func sampleResultRow() *ResultRow {
	return &ResultRow{
		City:        "Testville",
		DatetimeUTC: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		DatetimeIST: time.Date(2024, 6, 2, 5, 30, 0, 0, istZone),
		InsertedAt:  time.Date(2024, 6, 2, 0, 5, 0, 0, time.UTC),
		SubIndices: map[aqi.Pollutant]float64{
			aqi.PM25:            33.3,
			aqi.PM10:            40,
			aqi.NitrogenDioxide: math.NaN(),
			aqi.SulphurDioxide:  math.NaN(),
			aqi.CarbonMonoxide:  math.NaN(),
			aqi.Ozone:           math.NaN(),
		},
		AQI:      40,
		Category: "Good",
		Dominant: "pm10_index",
		Anomaly:  anomaly.Undetermined,
		Predictions: map[string]float64{
			"aqi_1h_pred": 42,
		},
		PredictionCategories: map[string]string{
			"aqi_1h_pred_category": "Good",
		},
		LatestRaw: map[aqi.Pollutant]float64{
			aqi.PM25: 20,
			aqi.PM10: 40,
		},
	}
}

func TestFilteredRestrictsToDestinationColumns(t *testing.T) {
	row := sampleResultRow()
	dest := map[string]struct{}{"city": {}, "aqi": {}}

	out := row.Filtered(dest)

	assert.Len(t, out, 2)
	assert.Equal(t, "Testville", out["city"])
	assert.Equal(t, 40.0, out["aqi"])
}

func TestFilteredFullDestination(t *testing.T) {
	row := sampleResultRow()
	dest := map[string]struct{}{
		"city": {}, "datetime_utc": {}, "aqi": {}, "aqi_category": {},
		"dominant_pollutant": {}, "anomaly": {},
		"pm2_5_index": {}, "ozone_index": {},
		"aqi_1h_pred": {}, "aqi_1h_pred_category": {},
		"aqi_2h_pred": {}, "latest_pm2_5": {},
		"not_a_real_column": {},
	}

	out := row.Filtered(dest)

	assert.Equal(t, "Good", out["aqi_category"])
	assert.Equal(t, "pm10_index", out["dominant_pollutant"])
	assert.Equal(t, 42.0, out["aqi_1h_pred"])
	assert.Equal(t, 20.0, out["latest_pm2_5"])

	// Undefined sub-index serializes as NULL, not zero.
	v, present := out["ozone_index"]
	assert.True(t, present)
	assert.Nil(t, v)

	// Undetermined anomaly is NULL, distinct from false.
	v, present = out["anomaly"]
	assert.True(t, present)
	assert.Nil(t, v)

	// Horizons without predictions and unknown destination columns are
	// never emitted.
	assert.NotContains(t, out, "aqi_2h_pred")
	assert.NotContains(t, out, "not_a_real_column")
}
