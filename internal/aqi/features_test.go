package aqi

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcmukkamala/aqi-pipeline/internal/store"
)

// hourlyRows builds n ascending hourly observations and applies mutate to
// each before returning.
func hourlyRows(n int, mutate func(i int, obs *store.RawObservation)) []store.RawObservation {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // a Monday
	rows := make([]store.RawObservation, n)
	for i := range rows {
		rows[i] = store.RawObservation{
			City:                "Testville",
			DatetimeUTC:         start.Add(time.Duration(i) * time.Hour),
			Temperature2m:       20,
			RelativeHumidity2m:  50,
			DewPoint2m:          10,
			ApparentTemperature: 21,
			PressureMSL:         1013,
			SurfacePressure:     1000,
			CloudCover:          25,
			WindSpeed10m:        3,
			WindDirection10m:    180,
			PM10:                40,
			PM25:                20,
			CarbonMonoxide:      0.5,
			CarbonDioxide:       400,
			NitrogenDioxide:     10,
			SulphurDioxide:      5,
			Ozone:               30,
			UVIndex:             1,
			UVIndexClearSky:     2,
			Methane:             1.5,
		}
		if mutate != nil {
			mutate(i, &rows[i])
		}
	}
	return rows
}

func (fs *FeatureSet) col(t *testing.T, name string) int {
	t.Helper()
	for i, c := range fs.Columns {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %q not found", name)
	return -1
}

func engineer(rows []store.RawObservation) *FeatureSet {
	return EngineerFeatures(rows, ComputeBlock(rows))
}

func TestRollingMeanPartialWindows(t *testing.T) {
	// pm2_5 = 1, 2, 3, ... With fewer than 24 samples the trailing mean is
	// the running mean of everything so far.
	rows := hourlyRows(10, func(i int, obs *store.RawObservation) {
		obs.PM25 = float64(i + 1)
	})
	fs := engineer(rows)

	j := fs.col(t, "rolling_mean_pm2_5_24h")
	for i := range rows {
		want := float64(i+2) / 2 // mean of 1..i+1
		assert.InDelta(t, want, fs.Rows[i][j], 1e-9, "row %d", i)
	}
}

func TestRollingMeanWindowCap(t *testing.T) {
	rows := hourlyRows(30, func(i int, obs *store.RawObservation) {
		obs.PM10 = float64(i)
	})
	fs := engineer(rows)

	j := fs.col(t, "rolling_mean_pm10_24h")
	// Row 29 sees values 6..29: mean 17.5.
	assert.InDelta(t, 17.5, fs.Rows[29][j], 1e-9)
}

func TestDerivedFeatures(t *testing.T) {
	rows := hourlyRows(1, nil)
	fs := engineer(rows)
	row := fs.Rows[0]

	assert.InDelta(t, 13, row[fs.col(t, "pressure_diff")], 1e-9)
	assert.InDelta(t, 0.5+400+10+5+30+1.5, row[fs.col(t, "sum_gases")], 1e-9)
	assert.InDelta(t, 0.5, row[fs.col(t, "pollutant_ratio_pm2_5_pm10")], 1e-9)
	assert.InDelta(t, 10, row[fs.col(t, "temp_range")], 1e-9)
	assert.InDelta(t, 500, row[fs.col(t, "humidity_temp_interaction")], 1e-9)
	assert.InDelta(t, 0, row[fs.col(t, "hour")], 1e-9)
	assert.InDelta(t, 0, row[fs.col(t, "day_of_week")], 1e-9, "Monday is 0")
	assert.InDelta(t, 3, row[fs.col(t, "month")], 1e-9)
}

func TestSumGasesTreatsMissingAsZero(t *testing.T) {
	rows := hourlyRows(1, func(i int, obs *store.RawObservation) {
		obs.CarbonDioxide = math.NaN()
		obs.Methane = math.NaN()
	})
	fs := engineer(rows)
	assert.InDelta(t, 0.5+10+5+30, fs.Rows[0][fs.col(t, "sum_gases")], 1e-9)
}

func TestPollutantRatioUndefinedCases(t *testing.T) {
	rows := hourlyRows(2, func(i int, obs *store.RawObservation) {
		if i == 0 {
			obs.PM10 = 0
		} else {
			obs.PM25 = math.NaN()
		}
	})
	fs := engineer(rows)
	j := fs.col(t, "pollutant_ratio_pm2_5_pm10")
	assert.True(t, math.IsNaN(fs.Rows[0][j]), "pm10 == 0")
	assert.True(t, math.IsNaN(fs.Rows[1][j]), "pm2_5 missing")
}

func TestWindSpeedCategory(t *testing.T) {
	assert.Equal(t, "low", WindSpeedCategory(0))
	assert.Equal(t, "low", WindSpeedCategory(2.5))
	assert.Equal(t, "medium", WindSpeedCategory(2.6))
	assert.Equal(t, "medium", WindSpeedCategory(6))
	assert.Equal(t, "high", WindSpeedCategory(6.1))
	assert.Equal(t, "", WindSpeedCategory(math.NaN()))
}

func TestColumnMeansSkipNaN(t *testing.T) {
	rows := hourlyRows(4, func(i int, obs *store.RawObservation) {
		if i%2 == 0 {
			obs.Ozone = math.NaN()
		} else {
			obs.Ozone = 100
		}
	})
	fs := engineer(rows)
	means := fs.ColumnMeans()

	require.Equal(t, len(fs.Columns), len(means))
	assert.InDelta(t, 100, means[fs.col(t, "ozone")], 1e-9)
}
