package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
)

// querier is the subset of *pgxpool.Pool used by PostgresRepository.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresConfig names the target city and source tables.
type PostgresConfig struct {
	// City restricts both queries. Default: Los Angeles.
	City string

	// HighwayTable holds one row per highway linestring with a GeoJSON column.
	HighwayTable string

	// WeatherTable holds hourly observations per city.
	WeatherTable string
}

// DefaultPostgresConfig returns the default dataset configuration.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		City:         "Los Angeles",
		HighwayTable: "geospatial.national_highway_system_subset",
		WeatherTable: "historical.top_city_hourly_imperial",
	}
}

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db          querier
	city        string
	highwaysSQL string
	trendsSQL   string
}

// NewPostgresRepository creates a warehouse repository on a pgx pool.
func NewPostgresRepository(db querier, cfg PostgresConfig) *PostgresRepository {
	defaults := DefaultPostgresConfig()
	if cfg.City == "" {
		cfg.City = defaults.City
	}
	if cfg.HighwayTable == "" {
		cfg.HighwayTable = defaults.HighwayTable
	}
	if cfg.WeatherTable == "" {
		cfg.WeatherTable = defaults.WeatherTable
	}

	highwayTable := quoteTable(cfg.HighwayTable)
	weatherTable := quoteTable(cfg.WeatherTable)

	return &PostgresRepository{
		db:          db,
		city:        cfg.City,
		highwaysSQL: fmt.Sprintf(highwaysQuery, weatherTable, highwayTable),
		trendsSQL:   fmt.Sprintf(trendsQuery, weatherTable),
	}
}

const highwaysQuery = `
	WITH weather_summary AS (
		SELECT
			city_name,
			MAX(datetime::date) AS latest_date,
			ROUND(AVG(humidity_relative)::numeric, 1)::float8 AS avg_humidity,
			ROUND(SUM(rain_lwe)::numeric, 2)::float8 AS total_precipitation,
			SUM(minutes_of_precipitation)::float8 AS total_precip_minutes,
			ROUND(AVG(temperature)::numeric, 1)::float8 AS avg_temperature,
			ROUND(AVG(wind_speed)::numeric, 1)::float8 AS avg_wind_speed
		FROM %s
		WHERE city_name = $1
			AND EXTRACT(HOUR FROM datetime) BETWEEN $2 AND $3
		GROUP BY city_name
	)
	SELECT
		h.*,
		w.latest_date,
		w.avg_humidity,
		w.total_precipitation,
		w.total_precip_minutes,
		w.avg_temperature,
		w.avg_wind_speed
	FROM %s h
	LEFT JOIN weather_summary w ON h.city_name = w.city_name
	WHERE h.city_name = $1
`

const trendsQuery = `
	SELECT
		datetime,
		EXTRACT(HOUR FROM datetime)::int AS hour_of_day,
		humidity_relative::float8,
		minutes_of_precipitation::float8,
		rain_lwe::float8,
		temperature::float8,
		wind_gust::float8,
		wind_speed::float8
	FROM %s
	WHERE city_name = $1
		AND EXTRACT(HOUR FROM datetime) BETWEEN $2 AND $3
	ORDER BY datetime
`

// LoadHighways runs the highway/weather join for r.
func (r *PostgresRepository) LoadHighways(ctx context.Context, hr hours.Range) (*table.Table, error) {
	rows, err := r.db.Query(ctx, r.highwaysSQL, r.city, hr.Start, hr.End)
	if err != nil {
		return nil, fmt.Errorf("query highways: %w", err)
	}
	defer rows.Close()

	t, err := decodeTable(rows)
	if err != nil {
		return nil, fmt.Errorf("decode highways: %w", err)
	}
	return t, nil
}

// LoadWeatherTrends returns the observations for r ordered by time.
func (r *PostgresRepository) LoadWeatherTrends(ctx context.Context, hr hours.Range) ([]HourlyObservation, error) {
	rows, err := r.db.Query(ctx, r.trendsSQL, r.city, hr.Start, hr.End)
	if err != nil {
		return nil, fmt.Errorf("query weather trends: %w", err)
	}
	defer rows.Close()

	var observations []HourlyObservation
	for rows.Next() {
		var o HourlyObservation
		err := rows.Scan(
			&o.Datetime,
			&o.HourOfDay,
			&o.HumidityRelative,
			&o.MinutesOfPrecipitation,
			&o.RainLWE,
			&o.Temperature,
			&o.WindGust,
			&o.WindSpeed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan weather row: %w", err)
		}
		observations = append(observations, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read weather rows: %w", err)
	}

	return observations, nil
}

// Ping checks warehouse connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// decodeTable reads a result set with arbitrary columns into a typed table.
// Column kinds come from the Postgres type of each field.
func decodeTable(rows pgx.Rows) (*table.Table, error) {
	fields := rows.FieldDescriptions()
	columns := make([]*table.Column, len(fields))
	for i, f := range fields {
		columns[i] = &table.Column{Name: f.Name, Kind: kindForOID(f.DataTypeOID)}
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			columns[i].Values = append(columns[i].Values, normalizeValue(v))
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range columns {
		if c.Values == nil {
			c.Values = []any{}
		}
	}
	return table.New(columns...)
}

func kindForOID(oid uint32) table.Kind {
	switch oid {
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return table.KindFloat
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return table.KindInt
	default:
		return table.KindText
	}
}

// normalizeValue maps pgx decoded values onto the primitives the table
// package understands.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(x).String()
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

var _ Repository = (*PostgresRepository)(nil)
