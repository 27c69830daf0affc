// Package warehouse is the query layer: it loads highway segments joined with
// the city weather summary, and hourly weather observations, for an hour
// range.
package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
)

// Warehouse errors.
var (
	ErrUnavailable = errors.New("warehouse unavailable")
)

// Highway table columns referenced by the dashboard.
const (
	ColumnCityName = "city_name"
	ColumnSign     = "sign1"
	ColumnSpeed    = "speed_limit"
	ColumnMiles    = "miles"
	ColumnTraffic  = "average_annual_daily_traffic"
	ColumnYear     = "year"
	ColumnGeometry = "geojson"
)

// Weather summary columns joined onto every highway row.
const (
	ColumnLatestDate         = "latest_date"
	ColumnAvgHumidity        = "avg_humidity"
	ColumnTotalPrecipitation = "total_precipitation"
	ColumnTotalPrecipMinutes = "total_precip_minutes"
	ColumnAvgTemperature     = "avg_temperature"
	ColumnAvgWindSpeed       = "avg_wind_speed"
)

// HourlyObservation is one timestamped weather observation for the target
// city. Measurements are nil when the source has no value.
type HourlyObservation struct {
	Datetime               time.Time
	HourOfDay              int
	HumidityRelative       *float64
	MinutesOfPrecipitation *float64
	RainLWE                *float64
	Temperature            *float64
	WindGust               *float64
	WindSpeed              *float64
}

// WeatherSummary is the city-level aggregate over observations in an hour
// range.
type WeatherSummary struct {
	LatestDate         *time.Time
	AvgHumidity        *float64
	TotalPrecipitation *float64
	TotalPrecipMinutes *float64
	AvgTemperature     *float64
	AvgWindSpeed       *float64
}

// Repository is the query layer contract. Both calls are pure functions of
// the hour range for a given dataset.
type Repository interface {
	// LoadHighways returns one row per highway segment of the target city
	// with the weather summary for observations inside r.
	LoadHighways(ctx context.Context, r hours.Range) (*table.Table, error)

	// LoadWeatherTrends returns the observations inside r ordered by time.
	LoadWeatherTrends(ctx context.Context, r hours.Range) ([]HourlyObservation, error)
}

// Pinger is implemented by repositories that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
