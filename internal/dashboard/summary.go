package dashboard

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
)

// Summary is the metric row shown above the tabs.
type Summary struct {
	Range               hours.Range `json:"range"`
	HourText            string      `json:"hourText"`
	City                string      `json:"city"`
	Metrics             []Metric    `json:"metrics"`
	ProcessedGeometries int         `json:"processedGeometries"`
	Notices             []Notice    `json:"notices,omitempty"`
}

// BuildSummary computes segment count, roadway miles, and the average of
// positive speed limits.
func BuildSummary(snap *Snapshot) *Summary {
	s := &Summary{
		Range:    snap.Range,
		HourText: snap.Range.Text(),
		City:     snap.City,
	}

	if snap.Highways.Empty() {
		s.Notices = []Notice{{Level: NoticeWarning, Message: MessageNoHighways}}
		return s
	}

	avgSpeed := table.NotAvailable
	if speeds := positive(snap.Highways.Floats(warehouse.ColumnSpeed)); len(speeds) > 0 {
		avgSpeed = fmt.Sprintf("%.0f mph", stat.Mean(speeds, nil))
	}

	s.Metrics = []Metric{
		{Label: "Total Linestring Segments", Value: humanize.Comma(int64(snap.Highways.Len()))},
		{Label: "Total Roadway Miles", Value: fmt.Sprintf("%.0f mi", floats.Sum(snap.Highways.Floats(warehouse.ColumnMiles)))},
		{Label: "Avg Speed Limit", Value: avgSpeed},
	}

	s.ProcessedGeometries = snap.ValidPaths()
	if s.ProcessedGeometries > 0 {
		s.Notices = append(s.Notices, Notice{
			Level:   NoticeInfo,
			Message: fmt.Sprintf("Successfully processed %s highway geometries for visualization", humanize.Comma(int64(s.ProcessedGeometries))),
		})
	}
	return s
}

// positive returns the values greater than zero.
func positive(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}
