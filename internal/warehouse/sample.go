package warehouse

import (
	"encoding/json"
	"math"
	"time"

	"github.com/roadweather/roadweather/internal/table"
)

// sampleSegment is a synthetic highway segment drawn as a straight line
// between two points.
type sampleSegment struct {
	sign     string
	speed    any
	traffic  any
	year     int
	from, to [2]float64
	points   int
	multi    bool
}

var sampleSegments = []sampleSegment{
	{sign: "I5", speed: 65, traffic: 210000, year: 2020, from: [2]float64{-118.2437, 34.0522}, to: [2]float64{-118.3554, 34.2011}, points: 48},
	{sign: "I10", speed: 65, traffic: 250000, year: 2020, from: [2]float64{-118.4912, 34.0195}, to: [2]float64{-118.2437, 34.0522}, points: 36},
	{sign: "US101", speed: 55, traffic: 180000, year: 2019, from: [2]float64{-118.2437, 34.0522}, to: [2]float64{-118.4695, 34.1561}, points: 24},
	{sign: "I405", speed: 65, traffic: 300000, year: 2021, from: [2]float64{-118.3965, 33.9416}, to: [2]float64{-118.4695, 34.1561}, points: 18},
	{sign: "SR110", speed: 55, traffic: 120000, year: 2018, from: [2]float64{-118.2437, 34.0522}, to: [2]float64{-118.2817, 33.7701}, points: 12, multi: true},
	{sign: "I710", speed: nil, traffic: nil, year: 2017, from: [2]float64{-118.1937, 33.7701}, to: [2]float64{-118.1654, 34.0689}, points: 2},
}

// NewSampleRepository returns an in-memory warehouse seeded with synthetic
// highways and one week of hourly observations for city, ending the day
// before now.
func NewSampleRepository(city string, now time.Time) *InMemoryRepository {
	r := NewInMemoryRepository(city)
	r.SetHighways(sampleHighways(city))

	end := now.UTC().Truncate(24 * time.Hour)
	start := end.Add(-7 * 24 * time.Hour)
	var obs []HourlyObservation
	for at := start; at.Before(end); at = at.Add(time.Hour) {
		obs = append(obs, sampleObservation(at))
	}
	r.AddObservations(city, obs...)
	return r
}

func sampleHighways(city string) *table.Table {
	n := len(sampleSegments)
	cities := make([]any, n)
	signs := make([]any, n)
	speeds := make([]any, n)
	miles := make([]any, n)
	traffic := make([]any, n)
	years := make([]any, n)
	geometries := make([]any, n)

	for i, s := range sampleSegments {
		cities[i] = city
		signs[i] = s.sign
		speeds[i] = s.speed
		traffic[i] = s.traffic
		years[i] = s.year
		miles[i] = math.Round(segmentMiles(s.from, s.to)*100) / 100
		geometries[i] = sampleGeometry(s)
	}

	return table.MustNew(
		&table.Column{Name: ColumnCityName, Kind: table.KindText, Values: cities},
		&table.Column{Name: ColumnSign, Kind: table.KindText, Values: signs},
		&table.Column{Name: ColumnSpeed, Kind: table.KindInt, Values: speeds},
		&table.Column{Name: ColumnMiles, Kind: table.KindFloat, Values: miles},
		&table.Column{Name: ColumnTraffic, Kind: table.KindInt, Values: traffic},
		&table.Column{Name: ColumnYear, Kind: table.KindInt, Values: years},
		&table.Column{Name: ColumnGeometry, Kind: table.KindText, Values: geometries},
	)
}

func sampleGeometry(s sampleSegment) string {
	line := make([][2]float64, s.points)
	for i := range line {
		f := float64(i) / float64(s.points-1)
		line[i] = [2]float64{
			s.from[0] + (s.to[0]-s.from[0])*f,
			s.from[1] + (s.to[1]-s.from[1])*f,
		}
	}

	geom := map[string]any{"type": "LineString", "coordinates": line}
	if s.multi {
		geom = map[string]any{"type": "MultiLineString", "coordinates": [][][2]float64{line}}
	}
	b, _ := json.Marshal(geom)
	return string(b)
}

// segmentMiles approximates the great-circle length of a segment.
func segmentMiles(from, to [2]float64) float64 {
	const earthRadiusMiles = 3958.8
	lat1 := from[1] * math.Pi / 180
	lat2 := to[1] * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (to[0] - from[0]) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

// sampleObservation derives a plausible coastal observation from the hour of
// day so repeated runs produce the same data.
func sampleObservation(at time.Time) HourlyObservation {
	hour := float64(at.Hour())
	day := float64(at.YearDay())
	phase := (hour - 15) / 24 * 2 * math.Pi

	temperature := 68 + 9*math.Cos(phase) + math.Sin(day)
	humidity := 62 - 18*math.Cos(phase)
	windSpeed := 6 + 4*math.Cos(phase)
	windGust := windSpeed * 1.6

	minutes := 0.0
	rain := 0.0
	if int(day)%5 == 0 && hour >= 4 && hour < 9 {
		minutes = 20
		rain = 0.02
	}

	return HourlyObservation{
		Datetime:               at,
		HourOfDay:              at.Hour(),
		HumidityRelative:       &humidity,
		MinutesOfPrecipitation: &minutes,
		RainLWE:                &rain,
		Temperature:            &temperature,
		WindGust:               &windGust,
		WindSpeed:              &windSpeed,
	}
}
