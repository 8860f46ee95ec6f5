package store

import (
	"time"
)

// RawObservation is one hourly reading for a city, as written by the
// collectors into air_quality_data. Missing sensor values are NaN.
type RawObservation struct {
	City        string
	DatetimeUTC time.Time
	DatetimeIST time.Time

	Temperature2m       float64
	RelativeHumidity2m  float64
	DewPoint2m          float64
	ApparentTemperature float64
	PressureMSL         float64
	SurfacePressure     float64
	CloudCover          float64
	WindSpeed10m        float64
	WindDirection10m    float64
	PM10                float64
	PM25                float64
	CarbonMonoxide      float64
	CarbonDioxide       float64
	NitrogenDioxide     float64
	SulphurDioxide      float64
	Ozone               float64
	UVIndex             float64
	UVIndexClearSky     float64
	Methane             float64
}

// rawSelectColumns is the column list fetched per city window, in scan order.
var rawSelectColumns = []string{
	"city", "datetime_utc", "datetime_ist",
	"temperature_2m", "relative_humidity_2m", "dew_point_2m",
	"apparent_temperature", "pressure_msl", "surface_pressure",
	"cloudcover", "windspeed_10m", "winddirection_10m",
	"pm10", "pm2_5", "carbon_monoxide", "carbon_dioxide",
	"nitrogen_dioxide", "sulphur_dioxide", "ozone",
	"uv_index", "uv_index_clear_sky", "methane",
}

// FallbackResultColumns is the conservative aqi_results column set used when
// schema discovery fails. It must stay a subset of any live destination.
var FallbackResultColumns = map[string]struct{}{
	"id":                     {},
	"city":                   {},
	"datetime_utc":           {},
	"datetime_ist":           {},
	"inserted_at":            {},
	"pm2_5_index":            {},
	"pm10_index":             {},
	"nitrogen_dioxide_index": {},
	"sulphur_dioxide_index":  {},
	"carbon_monoxide_index":  {},
	"ozone_index":            {},
	"aqi":                    {},
	"aqi_category":           {},
	"dominant_pollutant":     {},
	"anomaly":                {},
	"aqi_1h_pred":            {},
	"aqi_2h_pred":            {},
	"aqi_3h_pred":            {},
	"aqi_1h_pred_category":   {},
	"aqi_2h_pred_category":   {},
	"aqi_3h_pred_category":   {},
}
