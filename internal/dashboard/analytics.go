package dashboard

import (
	"fmt"
	"math"
	"sort"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
)

const maxHistogramBins = 50

// Bin is one histogram bucket covering [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram is a binned distribution. ViewRange is the initially visible
// x range; the client may pan beyond it.
type Histogram struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	XTitle    string      `json:"xTitle"`
	YTitle    string      `json:"yTitle"`
	Bins      []Bin       `json:"bins"`
	ViewRange *[2]float64 `json:"viewRange,omitempty"`
}

// Analytics is the highway analytics tab.
type Analytics struct {
	Range           hours.Range `json:"range"`
	LengthHistogram *Histogram  `json:"lengthHistogram,omitempty"`
	SpeedHistogram  *Histogram  `json:"speedHistogram,omitempty"`
	DataSummary     []Metric    `json:"dataSummary"`
	SpeedLimitStats []Metric    `json:"speedLimitStats"`
	Notices         []Notice    `json:"notices,omitempty"`
}

// LengthViewRange is the initial x range of the segment length histogram.
var LengthViewRange = [2]float64{0, 0.5}

// BuildAnalytics computes the segment length and speed limit distributions
// and their summary statistics.
func BuildAnalytics(snap *Snapshot) *Analytics {
	a := &Analytics{Range: snap.Range}

	if snap.Highways.Empty() {
		a.Notices = []Notice{{Level: NoticeWarning, Message: MessageNoHighways}}
		return a
	}

	miles := snap.Highways.Floats(warehouse.ColumnMiles)
	speeds := snap.Highways.Floats(warehouse.ColumnSpeed)

	viewRange := LengthViewRange
	a.LengthHistogram = &Histogram{
		ID:        "segment-length",
		Title:     "Linestring Length Distribution",
		XTitle:    "Linestring Length (miles)",
		YTitle:    "Number of Linestrings",
		Bins:      BinValues(miles),
		ViewRange: &viewRange,
	}
	a.SpeedHistogram = &Histogram{
		ID:     "speed-limit",
		Title:  "Speed Limit Distribution",
		XTitle: "Speed Limit (mph)",
		YTitle: "Number of Highways",
		Bins:   BinValues(speeds),
	}

	withYear := "0"
	if _, ok := snap.Highways.Column(warehouse.ColumnYear); ok {
		withYear = humanize.Comma(int64(snap.Highways.CountPresent(warehouse.ColumnYear)))
	}

	a.DataSummary = []Metric{
		{Label: "Records w/ Year", Value: withYear},
		{Label: "Longest Segment", Value: formatMiles(miles, floats.Max)},
		{Label: "Shortest Segment", Value: formatMiles(miles, floats.Min)},
		{Label: "Avg Segment", Value: formatMiles(miles, func(v []float64) float64 { return stat.Mean(v, nil) })},
	}

	limits := positive(speeds)
	if len(limits) == 0 {
		a.Notices = append(a.Notices, Notice{Level: NoticeInfo, Message: MessageNoSpeedLimits})
		return a
	}

	mode, _ := stat.Mode(limits, nil)
	a.SpeedLimitStats = []Metric{
		{Label: "Most Common", Value: fmt.Sprintf("%.0f mph", mode)},
		{Label: "Highest", Value: fmt.Sprintf("%.0f mph", floats.Max(limits))},
		{Label: "Lowest", Value: fmt.Sprintf("%.0f mph", floats.Min(limits))},
	}
	return a
}

// BinValues splits values into equal-width bins. The bin count follows
// Sturges' rule; the last bin includes the maximum.
func BinValues(values []float64) []Bin {
	if len(values) == 0 {
		return nil
	}

	x := append([]float64(nil), values...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]

	if lo == hi {
		return []Bin{{Lower: lo, Upper: lo + 1, Count: len(x)}}
	}

	n := int(math.Ceil(math.Log2(float64(len(x))))) + 1
	if n > maxHistogramBins {
		n = maxHistogramBins
	}

	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	upper := dividers[n]
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)

	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	bins[n-1].Upper = upper
	return bins
}

func formatMiles(values []float64, agg func([]float64) float64) string {
	if len(values) == 0 {
		return table.NotAvailable
	}
	return fmt.Sprintf("%.1f mi", agg(values))
}
