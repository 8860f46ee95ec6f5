package store

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResultSQLUpsert(t *testing.T) {
	row := map[string]any{
		"datetime_utc": time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		"city":         "Testville",
		"aqi":          40.0,
		"aqi_category": "Good",
	}

	query, args := buildResultSQL(row, true)

	assert.Equal(t,
		"INSERT INTO aqi_results (aqi, aqi_category, city, datetime_utc) "+
			"VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (city, datetime_utc) DO UPDATE "+
			"SET aqi = EXCLUDED.aqi, aqi_category = EXCLUDED.aqi_category",
		query)
	require.Len(t, args, 4)
	assert.Equal(t, 40.0, args[0])
	assert.Equal(t, "Good", args[1])
	assert.Equal(t, "Testville", args[2])
}

func TestBuildResultSQLUpsertKeyColumnsOnly(t *testing.T) {
	row := map[string]any{
		"city":         "Testville",
		"datetime_utc": time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	query, _ := buildResultSQL(row, true)

	assert.Equal(t,
		"INSERT INTO aqi_results (city, datetime_utc) VALUES ($1, $2) "+
			"ON CONFLICT (city, datetime_utc) DO NOTHING",
		query)
}

func TestBuildResultSQLPlainInsert(t *testing.T) {
	row := map[string]any{"city": "Testville", "aqi": nil}

	query, args := buildResultSQL(row, false)

	assert.Equal(t, "INSERT INTO aqi_results (aqi, city) VALUES ($1, $2)", query)
	require.Len(t, args, 2)
	assert.Nil(t, args[0])
}

func TestBuildResultSQLDeterministicOrder(t *testing.T) {
	row := map[string]any{"b": 2, "a": 1, "c": 3}

	first, _ := buildResultSQL(row, false)
	for i := 0; i < 10; i++ {
		query, _ := buildResultSQL(row, false)
		assert.Equal(t, first, query)
	}
}

func TestNullFloatRoundTrip(t *testing.T) {
	assert.Equal(t, sql.NullFloat64{}, nullFloat(math.NaN()))
	assert.Equal(t, sql.NullFloat64{Float64: 1.5, Valid: true}, nullFloat(1.5))

	assert.True(t, math.IsNaN(nanFloat(sql.NullFloat64{})))
	assert.Equal(t, 1.5, nanFloat(sql.NullFloat64{Float64: 1.5, Valid: true}))
}
