package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// FetchCityWindow returns all raw observations for a city newer than since,
// most recent first.
func (db *DB) FetchCityWindow(ctx context.Context, city string, since time.Time) ([]RawObservation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM air_quality_data
		WHERE city = $1 AND datetime_utc >= $2
		ORDER BY datetime_utc DESC
	`, strings.Join(rawSelectColumns, ", "))

	rows, err := db.QueryContext(ctx, query, city, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch window for %s: %w", city, err)
	}
	defer rows.Close()

	var observations []RawObservation
	for rows.Next() {
		var (
			obs RawObservation
			ist sql.NullTime
			f   [19]sql.NullFloat64
		)
		if err := rows.Scan(
			&obs.City, &obs.DatetimeUTC, &ist,
			&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8],
			&f[9], &f[10], &f[11], &f[12], &f[13], &f[14], &f[15], &f[16],
			&f[17], &f[18],
		); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if ist.Valid {
			obs.DatetimeIST = ist.Time
		}
		obs.Temperature2m = nanFloat(f[0])
		obs.RelativeHumidity2m = nanFloat(f[1])
		obs.DewPoint2m = nanFloat(f[2])
		obs.ApparentTemperature = nanFloat(f[3])
		obs.PressureMSL = nanFloat(f[4])
		obs.SurfacePressure = nanFloat(f[5])
		obs.CloudCover = nanFloat(f[6])
		obs.WindSpeed10m = nanFloat(f[7])
		obs.WindDirection10m = nanFloat(f[8])
		obs.PM10 = nanFloat(f[9])
		obs.PM25 = nanFloat(f[10])
		obs.CarbonMonoxide = nanFloat(f[11])
		obs.CarbonDioxide = nanFloat(f[12])
		obs.NitrogenDioxide = nanFloat(f[13])
		obs.SulphurDioxide = nanFloat(f[14])
		obs.Ozone = nanFloat(f[15])
		obs.UVIndex = nanFloat(f[16])
		obs.UVIndexClearSky = nanFloat(f[17])
		obs.Methane = nanFloat(f[18])
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

// DiscoverCities pages through the raw table collecting the distinct
// non-empty city names with data newer than since, sorted lexicographically.
// Pagination avoids relying on any single-query result cap.
func (db *DB) DiscoverCities(ctx context.Context, since time.Time, pageSize int) ([]string, error) {
	seen := make(map[string]struct{})
	offset := 0

	for {
		rows, err := db.QueryContext(ctx, `
			SELECT city
			FROM air_quality_data
			WHERE datetime_utc >= $1
			ORDER BY city
			LIMIT $2 OFFSET $3
		`, since, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch city page at offset %d: %w", offset, err)
		}

		count := 0
		for rows.Next() {
			var city sql.NullString
			if err := rows.Scan(&city); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan city: %w", err)
			}
			count++
			name := strings.TrimSpace(city.String)
			if name != "" {
				seen[name] = struct{}{}
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if count < pageSize {
			break
		}
		offset += pageSize
	}

	cities := make([]string, 0, len(seen))
	for city := range seen {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities, nil
}

// ResultColumns discovers the live column set of aqi_results so writes can
// be filtered to what the destination actually accepts.
func (db *DB) ResultColumns(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT * FROM aqi_results LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect aqi_results: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read aqi_results columns: %w", err)
	}

	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set, rows.Err()
}

// UpsertResult writes a result row keyed by (city, datetime_utc). The row is
// a filtered column map, so the statement is built per row.
func (db *DB) UpsertResult(ctx context.Context, row map[string]any) error {
	query, args := buildResultSQL(row, true)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert result: %w", err)
	}
	return nil
}

// InsertResult writes a result row as a plain insert, the fallback when the
// upsert path fails.
func (db *DB) InsertResult(ctx context.Context, row map[string]any) error {
	query, args := buildResultSQL(row, false)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// UpsertObservation inserts or updates one raw observation row.
func (db *DB) UpsertObservation(ctx context.Context, obs *RawObservation) error {
	query := `
		INSERT INTO air_quality_data (
			city, datetime_utc, datetime_ist,
			temperature_2m, relative_humidity_2m, dew_point_2m,
			apparent_temperature, pressure_msl, surface_pressure,
			cloudcover, windspeed_10m, winddirection_10m,
			pm10, pm2_5, carbon_monoxide, carbon_dioxide,
			nitrogen_dioxide, sulphur_dioxide, ozone,
			uv_index, uv_index_clear_sky, methane
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (city, datetime_utc) DO UPDATE
		SET datetime_ist = EXCLUDED.datetime_ist,
		    temperature_2m = EXCLUDED.temperature_2m,
		    relative_humidity_2m = EXCLUDED.relative_humidity_2m,
		    dew_point_2m = EXCLUDED.dew_point_2m,
		    apparent_temperature = EXCLUDED.apparent_temperature,
		    pressure_msl = EXCLUDED.pressure_msl,
		    surface_pressure = EXCLUDED.surface_pressure,
		    cloudcover = EXCLUDED.cloudcover,
		    windspeed_10m = EXCLUDED.windspeed_10m,
		    winddirection_10m = EXCLUDED.winddirection_10m,
		    pm10 = EXCLUDED.pm10,
		    pm2_5 = EXCLUDED.pm2_5,
		    carbon_monoxide = EXCLUDED.carbon_monoxide,
		    carbon_dioxide = EXCLUDED.carbon_dioxide,
		    nitrogen_dioxide = EXCLUDED.nitrogen_dioxide,
		    sulphur_dioxide = EXCLUDED.sulphur_dioxide,
		    ozone = EXCLUDED.ozone,
		    uv_index = EXCLUDED.uv_index,
		    uv_index_clear_sky = EXCLUDED.uv_index_clear_sky,
		    methane = EXCLUDED.methane
	`
	_, err := db.ExecContext(ctx, query,
		obs.City, obs.DatetimeUTC, nullTime(obs.DatetimeIST),
		nullFloat(obs.Temperature2m), nullFloat(obs.RelativeHumidity2m),
		nullFloat(obs.DewPoint2m), nullFloat(obs.ApparentTemperature),
		nullFloat(obs.PressureMSL), nullFloat(obs.SurfacePressure),
		nullFloat(obs.CloudCover), nullFloat(obs.WindSpeed10m),
		nullFloat(obs.WindDirection10m), nullFloat(obs.PM10),
		nullFloat(obs.PM25), nullFloat(obs.CarbonMonoxide),
		nullFloat(obs.CarbonDioxide), nullFloat(obs.NitrogenDioxide),
		nullFloat(obs.SulphurDioxide), nullFloat(obs.Ozone),
		nullFloat(obs.UVIndex), nullFloat(obs.UVIndexClearSky),
		nullFloat(obs.Methane),
	)
	return err
}

// buildResultSQL renders an insert (optionally with an upsert clause) for a
// dynamic column map. Columns are sorted so a given key set always renders
// the same statement.
func buildResultSQL(row map[string]any, upsert bool) (string, []any) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO aqi_results (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if upsert {
		var updates []string
		for _, col := range cols {
			if col == "city" || col == "datetime_utc" {
				continue
			}
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
		if len(updates) == 0 {
			b.WriteString(" ON CONFLICT (city, datetime_utc) DO NOTHING")
		} else {
			fmt.Fprintf(&b, " ON CONFLICT (city, datetime_utc) DO UPDATE SET %s",
				strings.Join(updates, ", "))
		}
	}

	return b.String(), args
}

func nanFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
