package aqi

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcmukkamala/aqi-pipeline/internal/store"
)

func TestSubindexBoundaryExactness(t *testing.T) {
	for pollutant, table := range breakpoints {
		for _, bp := range table {
			assert.InDelta(t, bp.iLow, Subindex(pollutant, bp.cLow), 1e-9,
				"%s low bound %v", pollutant, bp.cLow)
			assert.InDelta(t, bp.iHigh, Subindex(pollutant, bp.cHigh), 1e-9,
				"%s high bound %v", pollutant, bp.cHigh)
		}
	}
}

func TestSubindexInterpolation(t *testing.T) {
	// PM2.5 45 sits halfway through the (31,60] -> (51,100] band.
	got := Subindex(PM25, 45)
	want := (100.0-51.0)/(60.0-31.0)*(45.0-31.0) + 51.0
	assert.InDelta(t, want, got, 1e-9)
}

func TestSubindexUndefined(t *testing.T) {
	assert.True(t, math.IsNaN(Subindex(PM25, math.NaN())))
	assert.True(t, math.IsNaN(Subindex(PM25, 1000)), "beyond highest breakpoint")
	assert.True(t, math.IsNaN(Subindex(PM25, -5)), "below lowest breakpoint")
	// CO tables have gaps between bands; concentrations in a gap are undefined.
	assert.True(t, math.IsNaN(Subindex(CarbonMonoxide, 1.05)))
}

func TestCategoryBands(t *testing.T) {
	cases := []struct {
		aqi  float64
		want string
	}{
		{0, "Good"}, {50, "Good"},
		{50.01, "Satisfactory"}, {100, "Satisfactory"},
		{150, "Moderate"}, {200, "Moderate"},
		{250, "Poor"}, {300, "Poor"},
		{350, "Very Poor"}, {400, "Very Poor"},
		{401, "Severe"}, {500, "Severe"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Category(tc.aqi), "aqi=%v", tc.aqi)
	}
	assert.Equal(t, "", Category(math.NaN()))
}

func TestComputeBlockMaxAndDominant(t *testing.T) {
	rows := []store.RawObservation{
		{
			City:            "Delhi",
			DatetimeUTC:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			PM25:            30,  // sub-index 50
			PM10:            100, // sub-index 100
			NitrogenDioxide: math.NaN(),
			SulphurDioxide:  math.NaN(),
			CarbonMonoxide:  math.NaN(),
			Ozone:           math.NaN(),
			Methane:         math.NaN(),
		},
	}
	blocks := ComputeBlock(rows)
	require.Len(t, blocks, 1)

	b := blocks[0]
	assert.InDelta(t, 100, b.AQI, 1e-9)
	assert.Equal(t, "pm10_index", b.Dominant)
	assert.Equal(t, "Satisfactory", b.Category)
	assert.True(t, math.IsNaN(b.Sub[Ozone]))
}

func TestComputeBlockAllUndefined(t *testing.T) {
	rows := []store.RawObservation{
		{
			City:            "Nowhere",
			PM25:            math.NaN(),
			PM10:            math.NaN(),
			NitrogenDioxide: math.NaN(),
			SulphurDioxide:  math.NaN(),
			CarbonMonoxide:  math.NaN(),
			Ozone:           math.NaN(),
		},
	}
	b := ComputeBlock(rows)[0]
	assert.True(t, math.IsNaN(b.AQI))
	assert.Equal(t, "", b.Category)
	assert.Equal(t, "", b.Dominant)
}

func TestComputeBlockTieBreak(t *testing.T) {
	// PM2.5 30 and ozone 50 both give sub-index 50; the fixed pollutant
	// order puts pm2_5 first.
	rows := []store.RawObservation{
		{
			PM25:            30,
			PM10:            math.NaN(),
			NitrogenDioxide: math.NaN(),
			SulphurDioxide:  math.NaN(),
			CarbonMonoxide:  math.NaN(),
			Ozone:           50,
		},
	}
	b := ComputeBlock(rows)[0]
	assert.Equal(t, "pm2_5_index", b.Dominant)
}
