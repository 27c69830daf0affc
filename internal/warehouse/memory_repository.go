package warehouse

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
)

// InMemoryRepository is an in-memory implementation of Repository, useful for
// testing and local development. It computes the weather summary join the
// same way the SQL query does.
type InMemoryRepository struct {
	mu           sync.RWMutex
	city         string
	highways     *table.Table
	observations map[string][]HourlyObservation
}

// NewInMemoryRepository creates an empty in-memory warehouse for city.
func NewInMemoryRepository(city string) *InMemoryRepository {
	return &InMemoryRepository{
		city:         city,
		highways:     table.MustNew(&table.Column{Name: ColumnCityName, Kind: table.KindText, Values: []any{}}),
		observations: make(map[string][]HourlyObservation),
	}
}

// SetHighways replaces the highway table. It must have a city_name column.
func (r *InMemoryRepository) SetHighways(t *table.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highways = t
}

// AddObservations appends observations for a city.
func (r *InMemoryRepository) AddObservations(city string, obs ...HourlyObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations[city] = append(r.observations[city], obs...)
}

// LoadHighways returns the highways of the configured city with the weather
// summary for hr. The summary columns are nil when no observation matches.
func (r *InMemoryRepository) LoadHighways(ctx context.Context, hr hours.Range) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cities, _ := r.highways.Column(ColumnCityName)
	out := r.highways.Filter(func(row int) bool {
		return cities != nil && cities.Values[row] == r.city
	})

	summary := summarize(r.observations[r.city], hr)
	n := out.Len()
	columns := []*table.Column{
		repeatColumn(ColumnLatestDate, table.KindText, timeValue(summary.LatestDate), n),
		repeatColumn(ColumnAvgHumidity, table.KindFloat, floatValue(summary.AvgHumidity), n),
		repeatColumn(ColumnTotalPrecipitation, table.KindFloat, floatValue(summary.TotalPrecipitation), n),
		repeatColumn(ColumnTotalPrecipMinutes, table.KindFloat, floatValue(summary.TotalPrecipMinutes), n),
		repeatColumn(ColumnAvgTemperature, table.KindFloat, floatValue(summary.AvgTemperature), n),
		repeatColumn(ColumnAvgWindSpeed, table.KindFloat, floatValue(summary.AvgWindSpeed), n),
	}
	for _, c := range columns {
		if err := out.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadWeatherTrends returns the observations of the configured city inside hr
// ordered by time.
func (r *InMemoryRepository) LoadWeatherTrends(ctx context.Context, hr hours.Range) ([]HourlyObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []HourlyObservation
	for _, o := range r.observations[r.city] {
		if hr.Contains(o.Datetime.Hour()) {
			o.HourOfDay = o.Datetime.Hour()
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(context.Context) error {
	return nil
}

// summarize aggregates observations whose hour lies in hr. Aggregates ignore
// missing measurements and stay nil when nothing contributes.
func summarize(obs []HourlyObservation, hr hours.Range) WeatherSummary {
	var (
		summary                                         WeatherSummary
		humidity, temperature, windSpeed, rain, minutes accumulator
	)
	for _, o := range obs {
		if !hr.Contains(o.Datetime.Hour()) {
			continue
		}
		day := o.Datetime.UTC().Truncate(24 * time.Hour)
		if summary.LatestDate == nil || day.After(*summary.LatestDate) {
			summary.LatestDate = &day
		}
		humidity.add(o.HumidityRelative)
		temperature.add(o.Temperature)
		windSpeed.add(o.WindSpeed)
		rain.add(o.RainLWE)
		minutes.add(o.MinutesOfPrecipitation)
	}

	summary.AvgHumidity = round(humidity.mean(), 1)
	summary.TotalPrecipitation = round(rain.total(), 2)
	summary.TotalPrecipMinutes = minutes.total()
	summary.AvgTemperature = round(temperature.mean(), 1)
	summary.AvgWindSpeed = round(windSpeed.mean(), 1)
	return summary
}

// accumulator collects non-missing measurements.
type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(v *float64) {
	if v != nil && !math.IsNaN(*v) {
		a.sum += *v
		a.n++
	}
}

func (a *accumulator) mean() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.sum / float64(a.n)
	return &v
}

func (a *accumulator) total() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.sum
	return &v
}

// round rounds half away from zero like SQL ROUND on numeric.
func round(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	scale := math.Pow10(places)
	r := math.Round(*v*scale) / scale
	return &r
}

func repeatColumn(name string, kind table.Kind, v any, n int) *table.Column {
	values := make([]any, n)
	for i := range values {
		values[i] = v
	}
	return &table.Column{Name: name, Kind: kind, Values: values}
}

func floatValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timeValue(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

var _ Repository = (*InMemoryRepository)(nil)
