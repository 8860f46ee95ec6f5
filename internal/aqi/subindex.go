package aqi

import (
	"math"

	"github.com/rcmukkamala/aqi-pipeline/internal/store"
)

// Pollutant identifies one of the six pollutants with CPCB breakpoint tables.
type Pollutant string

const (
	PM25            Pollutant = "pm2_5"
	PM10            Pollutant = "pm10"
	NitrogenDioxide Pollutant = "nitrogen_dioxide"
	SulphurDioxide  Pollutant = "sulphur_dioxide"
	CarbonMonoxide  Pollutant = "carbon_monoxide"
	Ozone           Pollutant = "ozone"
)

// Pollutants is the fixed evaluation order. Dominant-pollutant ties are
// broken by this order, first maximum wins.
var Pollutants = []Pollutant{
	PM25, PM10, NitrogenDioxide, SulphurDioxide, CarbonMonoxide, Ozone,
}

// IndexColumn maps a pollutant to its sub-index column name in aqi_results.
func IndexColumn(p Pollutant) string {
	return string(p) + "_index"
}

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// CPCB breakpoint tables, µg/m³ except carbon monoxide in mg/m³.
// Normative constants; do not tune.
var breakpoints = map[Pollutant][]breakpoint{
	PM25: {
		{0, 30, 0, 50}, {31, 60, 51, 100}, {61, 90, 101, 200},
		{91, 120, 201, 300}, {121, 250, 301, 400}, {251, 500, 401, 500},
	},
	PM10: {
		{0, 50, 0, 50}, {51, 100, 51, 100}, {101, 250, 101, 200},
		{251, 350, 201, 300}, {351, 430, 301, 400}, {431, 600, 401, 500},
	},
	NitrogenDioxide: {
		{0, 40, 0, 50}, {41, 80, 51, 100}, {81, 180, 101, 200},
		{181, 280, 201, 300}, {281, 400, 301, 400}, {401, 600, 401, 500},
	},
	SulphurDioxide: {
		{0, 40, 0, 50}, {41, 80, 51, 100}, {81, 380, 101, 200},
		{381, 800, 201, 300}, {801, 1600, 301, 400}, {1601, 2000, 401, 500},
	},
	CarbonMonoxide: {
		{0.0, 1.0, 0, 50}, {1.1, 2.0, 51, 100}, {2.1, 10.0, 101, 200},
		{10.1, 17.0, 201, 300}, {17.1, 34.0, 301, 400}, {34.1, 50.0, 401, 500},
	},
	Ozone: {
		{0, 50, 0, 50}, {51, 100, 51, 100}, {101, 168, 101, 200},
		{169, 208, 201, 300}, {209, 748, 301, 500}, {749, 1000, 401, 500},
	},
}

// Subindex interpolates a concentration into a 0-500 sub-index using the
// pollutant's breakpoint table. Concentrations outside every breakpoint
// range, including NaN, yield NaN: an absence, not zero.
func Subindex(p Pollutant, c float64) float64 {
	if math.IsNaN(c) {
		return math.NaN()
	}
	for _, bp := range breakpoints[p] {
		if bp.cLow <= c && c <= bp.cHigh {
			return (bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(c-bp.cLow) + bp.iLow
		}
	}
	return math.NaN()
}

// Category returns the CPCB band label for an AQI value, or "" for NaN.
func Category(aqi float64) string {
	switch {
	case math.IsNaN(aqi):
		return ""
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Satisfactory"
	case aqi <= 200:
		return "Moderate"
	case aqi <= 300:
		return "Poor"
	case aqi <= 400:
		return "Very Poor"
	default:
		return "Severe"
	}
}

// IndexBlock holds per-row sub-indices and the derived overall values.
type IndexBlock struct {
	Sub      map[Pollutant]float64
	AQI      float64
	Category string
	Dominant string // sub-index column name, "" when all sub-indices are NaN
}

// ComputeBlock derives an IndexBlock per observation, in input order.
// AQI is the maximum non-NaN sub-index and NaN only when all six are NaN.
func ComputeBlock(rows []store.RawObservation) []IndexBlock {
	blocks := make([]IndexBlock, len(rows))
	for i, row := range rows {
		sub := map[Pollutant]float64{
			PM25:            Subindex(PM25, row.PM25),
			PM10:            Subindex(PM10, row.PM10),
			NitrogenDioxide: Subindex(NitrogenDioxide, row.NitrogenDioxide),
			SulphurDioxide:  Subindex(SulphurDioxide, row.SulphurDioxide),
			CarbonMonoxide:  Subindex(CarbonMonoxide, row.CarbonMonoxide),
			Ozone:           Subindex(Ozone, row.Ozone),
		}

		aqi := math.NaN()
		dominant := ""
		for _, p := range Pollutants {
			v := sub[p]
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(aqi) || v > aqi {
				aqi = v
				dominant = IndexColumn(p)
			}
		}

		blocks[i] = IndexBlock{
			Sub:      sub,
			AQI:      aqi,
			Category: Category(aqi),
			Dominant: dominant,
		}
	}
	return blocks
}
