package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rcmukkamala/aqi-pipeline/internal/store"
)

// ObservationMessage is the Kafka payload collectors publish per reading.
// Sensor fields are pointers: collectors omit what a station did not report.
type ObservationMessage struct {
	City        string    `json:"city"`
	DatetimeUTC time.Time `json:"datetime_utc"`
	DatetimeIST time.Time `json:"datetime_ist,omitempty"`

	Temperature2m       *float64 `json:"temperature_2m,omitempty"`
	RelativeHumidity2m  *float64 `json:"relative_humidity_2m,omitempty"`
	DewPoint2m          *float64 `json:"dew_point_2m,omitempty"`
	ApparentTemperature *float64 `json:"apparent_temperature,omitempty"`
	PressureMSL         *float64 `json:"pressure_msl,omitempty"`
	SurfacePressure     *float64 `json:"surface_pressure,omitempty"`
	CloudCover          *float64 `json:"cloudcover,omitempty"`
	WindSpeed10m        *float64 `json:"windspeed_10m,omitempty"`
	WindDirection10m    *float64 `json:"winddirection_10m,omitempty"`
	PM10                *float64 `json:"pm10,omitempty"`
	PM25                *float64 `json:"pm2_5,omitempty"`
	CarbonMonoxide      *float64 `json:"carbon_monoxide,omitempty"`
	CarbonDioxide       *float64 `json:"carbon_dioxide,omitempty"`
	NitrogenDioxide     *float64 `json:"nitrogen_dioxide,omitempty"`
	SulphurDioxide      *float64 `json:"sulphur_dioxide,omitempty"`
	Ozone               *float64 `json:"ozone,omitempty"`
	UVIndex             *float64 `json:"uv_index,omitempty"`
	UVIndexClearSky     *float64 `json:"uv_index_clear_sky,omitempty"`
	Methane             *float64 `json:"methane,omitempty"`
}

// DecodeObservationMessage decodes JSON to an ObservationMessage
func DecodeObservationMessage(data []byte) (*ObservationMessage, error) {
	var msg ObservationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.City == "" {
		return nil, fmt.Errorf("observation has no city")
	}
	if msg.DatetimeUTC.IsZero() {
		return nil, fmt.Errorf("observation has no datetime_utc")
	}
	return &msg, nil
}

// EncodeObservationMessage encodes an ObservationMessage to JSON
func EncodeObservationMessage(msg *ObservationMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// Observation converts the message into a store row, mapping omitted fields
// to NaN.
func (m *ObservationMessage) Observation() *store.RawObservation {
	return &store.RawObservation{
		City:        m.City,
		DatetimeUTC: m.DatetimeUTC.UTC(),
		DatetimeIST: m.DatetimeIST,

		Temperature2m:       deref(m.Temperature2m),
		RelativeHumidity2m:  deref(m.RelativeHumidity2m),
		DewPoint2m:          deref(m.DewPoint2m),
		ApparentTemperature: deref(m.ApparentTemperature),
		PressureMSL:         deref(m.PressureMSL),
		SurfacePressure:     deref(m.SurfacePressure),
		CloudCover:          deref(m.CloudCover),
		WindSpeed10m:        deref(m.WindSpeed10m),
		WindDirection10m:    deref(m.WindDirection10m),
		PM10:                deref(m.PM10),
		PM25:                deref(m.PM25),
		CarbonMonoxide:      deref(m.CarbonMonoxide),
		CarbonDioxide:       deref(m.CarbonDioxide),
		NitrogenDioxide:     deref(m.NitrogenDioxide),
		SulphurDioxide:      deref(m.SulphurDioxide),
		Ozone:               deref(m.Ozone),
		UVIndex:             deref(m.UVIndex),
		UVIndexClearSky:     deref(m.UVIndexClearSky),
		Methane:             deref(m.Methane),
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
