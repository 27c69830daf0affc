package dashboard

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
)

// Chart kinds.
const (
	ChartLine = "line"
	ChartBar  = "bar"
)

const chartHeight = 400

// HourlyWeather aggregates every observation of one hour of day. Means are
// nil when the hour has no measurement; sums are zero.
type HourlyWeather struct {
	Hour                   int      `json:"hour"`
	HumidityRelative       *float64 `json:"humidityRelative"`
	Temperature            *float64 `json:"temperature"`
	WindSpeed              *float64 `json:"windSpeed"`
	WindGust               *float64 `json:"windGust"`
	RainLWE                float64  `json:"rainLwe"`
	MinutesOfPrecipitation float64  `json:"minutesOfPrecipitation"`
}

// Axis is a chart y-axis. Overlaying names the axis it is drawn over.
type Axis struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Side       string `json:"side"`
	Overlaying string `json:"overlaying,omitempty"`
}

// Series is one plotted trace.
type Series struct {
	Name  string     `json:"name"`
	Kind  string     `json:"kind"`
	Axis  string     `json:"axis"`
	Color string     `json:"color,omitempty"`
	X     []float64  `json:"x"`
	Y     []*float64 `json:"y"`
}

// Chart is a chart description for the charting library.
type Chart struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	XTitle string   `json:"xTitle"`
	YAxes  []Axis   `json:"yAxes"`
	Series []Series `json:"series"`
	Height int      `json:"height,omitempty"`
}

// Trends is the weather trends tab.
type Trends struct {
	Range    hours.Range     `json:"range"`
	HourText string          `json:"hourText"`
	Title    string          `json:"title"`
	Hourly   []HourlyWeather `json:"hourly"`
	Charts   []Chart         `json:"charts"`
	Metrics  []Metric        `json:"metrics"`
	Notices  []Notice        `json:"notices,omitempty"`
}

// BuildTrends aggregates observations by hour of day and builds the four
// weather charts and summary metrics.
func BuildTrends(snap *Snapshot) *Trends {
	t := &Trends{
		Range:    snap.Range,
		HourText: snap.Range.Text(),
		Title:    fmt.Sprintf("Weather Trends - %s (%s)", snap.City, snap.Range.Text()),
	}

	if len(snap.Observations) == 0 {
		t.Notices = []Notice{{Level: NoticeWarning, Message: fmt.Sprintf(MessageNoWeather, snap.City)}}
		return t
	}

	t.Hourly = AggregateHourly(snap.Observations)
	t.Charts = trendCharts(t.Hourly)
	t.Metrics = trendMetrics(t.Hourly)
	return t
}

// AggregateHourly groups observations by hour of day, ordered by hour.
func AggregateHourly(obs []warehouse.HourlyObservation) []HourlyWeather {
	type bucket struct {
		humidity, temperature, windSpeed, windGust []float64
		rain, minutes                              float64
	}

	buckets := make(map[int]*bucket)
	for _, o := range obs {
		b, ok := buckets[o.HourOfDay]
		if !ok {
			b = &bucket{}
			buckets[o.HourOfDay] = b
		}
		b.humidity = appendPresent(b.humidity, o.HumidityRelative)
		b.temperature = appendPresent(b.temperature, o.Temperature)
		b.windSpeed = appendPresent(b.windSpeed, o.WindSpeed)
		b.windGust = appendPresent(b.windGust, o.WindGust)
		b.rain += valueOrZero(o.RainLWE)
		b.minutes += valueOrZero(o.MinutesOfPrecipitation)
	}

	out := make([]HourlyWeather, 0, len(buckets))
	for hour, b := range buckets {
		out = append(out, HourlyWeather{
			Hour:                   hour,
			HumidityRelative:       meanOf(b.humidity),
			Temperature:            meanOf(b.temperature),
			WindSpeed:              meanOf(b.windSpeed),
			WindGust:               meanOf(b.windGust),
			RainLWE:                b.rain,
			MinutesOfPrecipitation: b.minutes,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

func trendCharts(hourly []HourlyWeather) []Chart {
	x := make([]float64, len(hourly))
	var temperature, humidity, windSpeed, windGust, rain, minutes []*float64
	for i, h := range hourly {
		x[i] = float64(h.Hour)
		temperature = append(temperature, h.Temperature)
		humidity = append(humidity, h.HumidityRelative)
		windSpeed = append(windSpeed, h.WindSpeed)
		windGust = append(windGust, h.WindGust)
		rain = append(rain, ptr(h.RainLWE))
		minutes = append(minutes, ptr(h.MinutesOfPrecipitation))
	}

	return []Chart{
		{
			ID:     "temperature-humidity",
			Title:  "Temperature & Humidity Over 24 Hours",
			XTitle: "Hour of Day",
			YAxes: []Axis{
				{ID: "y", Title: "Temperature (°F)", Side: "left"},
				{ID: "y2", Title: "Humidity (%)", Side: "right", Overlaying: "y"},
			},
			Series: []Series{
				{Name: "Temperature (°F)", Kind: ChartLine, Axis: "y", Color: "red", X: x, Y: temperature},
				{Name: "Humidity (%)", Kind: ChartLine, Axis: "y2", Color: "blue", X: x, Y: humidity},
			},
			Height: chartHeight,
		},
		{
			ID:     "precipitation",
			Title:  "Precipitation by Hour",
			XTitle: "Hour of Day",
			YAxes:  []Axis{{ID: "y", Title: "Precipitation (inches)", Side: "left"}},
			Series: []Series{
				{Name: "Precipitation (inches)", Kind: ChartBar, Axis: "y", X: x, Y: rain},
			},
		},
		{
			ID:     "wind",
			Title:  "Wind Speed & Gusts Over 24 Hours",
			XTitle: "Hour of Day",
			YAxes:  []Axis{{ID: "y", Title: "Speed (mph)", Side: "left"}},
			Series: []Series{
				{Name: "Wind Speed (mph)", Kind: ChartLine, Axis: "y", Color: "green", X: x, Y: windSpeed},
				{Name: "Wind Gust (mph)", Kind: ChartLine, Axis: "y", Color: "orange", X: x, Y: windGust},
			},
			Height: chartHeight,
		},
		{
			ID:     "precipitation-minutes",
			Title:  "Minutes of Precipitation by Hour",
			XTitle: "Hour of Day",
			YAxes:  []Axis{{ID: "y", Title: "Minutes", Side: "left"}},
			Series: []Series{
				{Name: "Minutes", Kind: ChartBar, Axis: "y", X: x, Y: minutes},
			},
		},
	}
}

// trendMetrics summarizes the hourly aggregates. Means are taken over the
// hourly means, matching the charts.
func trendMetrics(hourly []HourlyWeather) []Metric {
	var temperature, humidity, windSpeed, rain []float64
	for _, h := range hourly {
		temperature = appendPresent(temperature, h.Temperature)
		humidity = appendPresent(humidity, h.HumidityRelative)
		windSpeed = appendPresent(windSpeed, h.WindSpeed)
		rain = append(rain, h.RainLWE)
	}

	return []Metric{
		{Label: "Avg Temperature", Value: formatMean("%.1f°F", temperature)},
		{Label: "Avg Humidity", Value: formatMean("%.1f%%", humidity)},
		{Label: "Total Precipitation", Value: fmt.Sprintf("%.2f in", floats.Sum(rain))},
		{Label: "Avg Wind Speed", Value: formatMean("%.1f mph", windSpeed)},
	}
}

func formatMean(format string, values []float64) string {
	if len(values) == 0 {
		return table.NotAvailable
	}
	return fmt.Sprintf(format, stat.Mean(values, nil))
}

func appendPresent(values []float64, v *float64) []float64 {
	if v == nil || math.IsNaN(*v) {
		return values
	}
	return append(values, *v)
}

func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return ptr(stat.Mean(values, nil))
}

func valueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}

func ptr(v float64) *float64 {
	return &v
}
