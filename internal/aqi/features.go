package aqi

import (
	"math"

	"github.com/rcmukkamala/aqi-pipeline/internal/store"
)

// rollingWindow is the trailing sample count for the PM rolling means,
// assuming hourly rows.
const rollingWindow = 24

// FeatureSet is the engineered numeric table for one city window, one row
// per observation in the same (ascending) order as the input. Wind speed
// category is kept separately because it is not numeric.
type FeatureSet struct {
	Columns []string
	Rows    [][]float64
	Wind    []string
}

// featureColumns is the fixed numeric column order fed to aggregation.
// It mirrors the training-time frame: raw sensor fields, sub-indices,
// overall AQI, then the derived features.
var featureColumns = []string{
	"temperature_2m", "relative_humidity_2m", "dew_point_2m",
	"apparent_temperature", "pressure_msl", "surface_pressure",
	"cloudcover", "windspeed_10m", "winddirection_10m",
	"pm10", "pm2_5", "carbon_monoxide", "carbon_dioxide",
	"nitrogen_dioxide", "sulphur_dioxide", "ozone",
	"uv_index", "uv_index_clear_sky", "methane",
	"pm2_5_index", "pm10_index", "nitrogen_dioxide_index",
	"sulphur_dioxide_index", "carbon_monoxide_index", "ozone_index",
	"aqi",
	"pressure_diff", "sum_gases",
	"rolling_mean_pm2_5_24h", "rolling_mean_pm10_24h",
	"pollutant_ratio_pm2_5_pm10",
	"temp_range", "humidity_temp_interaction",
	"hour", "day_of_week", "month",
}

// EngineerFeatures derives the training-time feature columns for a window of
// observations and their computed index blocks. Rows must already be sorted
// ascending by datetime_utc: the rolling means are trailing-only and order
// sensitive. Missing inputs propagate as NaN except where noted.
func EngineerFeatures(rows []store.RawObservation, blocks []IndexBlock) *FeatureSet {
	fs := &FeatureSet{
		Columns: featureColumns,
		Rows:    make([][]float64, len(rows)),
		Wind:    make([]string, len(rows)),
	}

	// Trailing sums for the rolling means; NaN samples are skipped the way
	// a min_periods=1 rolling mean skips them.
	var pm25Win, pm10Win []float64

	for i, row := range rows {
		pm25Win = append(pm25Win, row.PM25)
		pm10Win = append(pm10Win, row.PM10)
		if len(pm25Win) > rollingWindow {
			pm25Win = pm25Win[1:]
			pm10Win = pm10Win[1:]
		}

		pressureDiff := row.PressureMSL - row.SurfacePressure

		sumGases := zeroIfNaN(row.CarbonMonoxide) + zeroIfNaN(row.CarbonDioxide) +
			zeroIfNaN(row.NitrogenDioxide) + zeroIfNaN(row.SulphurDioxide) +
			zeroIfNaN(row.Ozone) + zeroIfNaN(row.Methane)

		ratio := math.NaN()
		if !math.IsNaN(row.PM25) && !math.IsNaN(row.PM10) && row.PM10 != 0 {
			ratio = row.PM25 / row.PM10
		}

		tempRange := row.Temperature2m - row.DewPoint2m
		humidityTemp := row.RelativeHumidity2m * tempRange

		t := row.DatetimeUTC.UTC()
		hour := float64(t.Hour())
		// Weekday numbering follows Monday=0, matching the training frame.
		dayOfWeek := float64((int(t.Weekday()) + 6) % 7)
		month := float64(t.Month())

		block := blocks[i]
		values := map[string]float64{
			"temperature_2m":             row.Temperature2m,
			"relative_humidity_2m":       row.RelativeHumidity2m,
			"dew_point_2m":               row.DewPoint2m,
			"apparent_temperature":       row.ApparentTemperature,
			"pressure_msl":               row.PressureMSL,
			"surface_pressure":           row.SurfacePressure,
			"cloudcover":                 row.CloudCover,
			"windspeed_10m":              row.WindSpeed10m,
			"winddirection_10m":          row.WindDirection10m,
			"pm10":                       row.PM10,
			"pm2_5":                      row.PM25,
			"carbon_monoxide":            row.CarbonMonoxide,
			"carbon_dioxide":             row.CarbonDioxide,
			"nitrogen_dioxide":           row.NitrogenDioxide,
			"sulphur_dioxide":            row.SulphurDioxide,
			"ozone":                      row.Ozone,
			"uv_index":                   row.UVIndex,
			"uv_index_clear_sky":         row.UVIndexClearSky,
			"methane":                    row.Methane,
			"pm2_5_index":                block.Sub[PM25],
			"pm10_index":                 block.Sub[PM10],
			"nitrogen_dioxide_index":     block.Sub[NitrogenDioxide],
			"sulphur_dioxide_index":      block.Sub[SulphurDioxide],
			"carbon_monoxide_index":      block.Sub[CarbonMonoxide],
			"ozone_index":                block.Sub[Ozone],
			"aqi":                        block.AQI,
			"pressure_diff":              pressureDiff,
			"sum_gases":                  sumGases,
			"rolling_mean_pm2_5_24h":     meanSkipNaN(pm25Win),
			"rolling_mean_pm10_24h":      meanSkipNaN(pm10Win),
			"pollutant_ratio_pm2_5_pm10": ratio,
			"temp_range":                 tempRange,
			"humidity_temp_interaction":  humidityTemp,
			"hour":                       hour,
			"day_of_week":                dayOfWeek,
			"month":                      month,
		}

		out := make([]float64, len(featureColumns))
		for j, col := range featureColumns {
			out[j] = values[col]
		}
		fs.Rows[i] = out
		fs.Wind[i] = WindSpeedCategory(row.WindSpeed10m)
	}

	return fs
}

// WindSpeedCategory buckets a wind speed into low/medium/high using
// right-closed bins (-0.1, 2.5], (2.5, 6], (6, inf). Returns "" for NaN or
// speeds at or below -0.1.
func WindSpeedCategory(speed float64) string {
	switch {
	case math.IsNaN(speed) || speed <= -0.1:
		return ""
	case speed <= 2.5:
		return "low"
	case speed <= 6:
		return "medium"
	default:
		return "high"
	}
}

// ColumnMeans aggregates the feature table into a single vector of per-column
// means, skipping NaN samples. A column with no valid samples stays NaN.
func (fs *FeatureSet) ColumnMeans() []float64 {
	means := make([]float64, len(fs.Columns))
	for j := range fs.Columns {
		sum, n := 0.0, 0
		for _, row := range fs.Rows {
			if math.IsNaN(row[j]) {
				continue
			}
			sum += row[j]
			n++
		}
		if n == 0 {
			means[j] = math.NaN()
		} else {
			means[j] = sum / float64(n)
		}
	}
	return means
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func meanSkipNaN(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
