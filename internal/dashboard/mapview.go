package dashboard

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/roadweather/roadweather/internal/geometry"
	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
	"github.com/roadweather/roadweather/pkg/polyline"
)

// Path encodings accepted by MapOptions.
const (
	PathEncodingCoordinates = "coordinates"
	PathEncodingPolyline    = "polyline"
)

// PathField is the row field holding the decimated path.
const PathField = "path"

// TrafficDisplayField holds the traffic count with thousands separators.
// The numeric column stays alongside it.
const TrafficDisplayField = warehouse.ColumnTraffic + "_display"

// Map styling.
var (
	HighwayColor   = [4]int{34, 139, 34, 200}
	HighlightColor = [4]int{0, 100, 255, 220}
)

const (
	highwayWidth   = 8
	widthMinPixels = 4
	widthMaxPixels = 20
	mapStyle       = "light"
	mapHeight      = 800
)

// MapOptions tunes the map payload.
type MapOptions struct {
	// PathEncoding is "coordinates" (default) or "polyline".
	PathEncoding string

	// Precision is the polyline precision (default: 5).
	Precision int
}

// PathLayer is the highway layer handed to the map renderer.
type PathLayer struct {
	Type           string           `json:"type"`
	Data           []map[string]any `json:"data"`
	PathField      string           `json:"pathField"`
	PathEncoding   string           `json:"pathEncoding"`
	Precision      int              `json:"precision,omitempty"`
	Color          [4]int           `json:"color"`
	Width          int              `json:"width"`
	WidthMinPixels int              `json:"widthMinPixels"`
	WidthMaxPixels int              `json:"widthMaxPixels"`
	Pickable       bool             `json:"pickable"`
	AutoHighlight  bool             `json:"autoHighlight"`
	HighlightColor [4]int           `json:"highlightColor"`
}

// Tooltip is a text template whose {field} placeholders refer to row fields.
type Tooltip struct {
	Text string `json:"text"`
}

// DataStats summarizes the mapped data and its estimated size.
type DataStats struct {
	TotalRows       int                   `json:"totalRows"`
	ValidGeometries int                   `json:"validGeometries"`
	TotalPoints     int                   `json:"totalPoints"`
	EstimatedMB     float64               `json:"estimatedMb"`
	PayloadLevel    geometry.PayloadLevel `json:"payloadLevel"`
}

// MapPayload is everything needed to draw the highway map.
type MapPayload struct {
	Range    hours.Range `json:"range"`
	HourText string      `json:"hourText"`
	Layer    *PathLayer  `json:"layer,omitempty"`
	View     ViewState   `json:"view"`
	MapStyle string      `json:"mapStyle"`
	Height   int         `json:"height"`
	Tooltip  Tooltip     `json:"tooltip"`
	Stats    *DataStats  `json:"stats,omitempty"`
	Notices  []Notice    `json:"notices,omitempty"`
}

// BuildMap builds the map payload. Rows without a usable path are dropped,
// the raw geometry column is removed, and the remaining values are sanitized.
// It also returns the columns the sanitizer had to leave unchanged.
func BuildMap(snap *Snapshot, view ViewState, opts MapOptions) (*MapPayload, []string) {
	payload := &MapPayload{
		Range:    snap.Range,
		HourText: snap.Range.Text(),
		View:     view,
		MapStyle: mapStyle,
		Height:   mapHeight,
		Tooltip:  Tooltip{Text: TooltipText(snap.Range)},
	}

	if snap.Highways.Empty() {
		payload.Notices = []Notice{{Level: NoticeWarning, Message: MessageNoHighways}}
		return payload, nil
	}

	var paths []geometry.Path
	mapped := snap.Highways.Filter(func(row int) bool {
		if len(snap.Paths[row]) == 0 {
			return false
		}
		paths = append(paths, snap.Paths[row])
		return true
	})

	points := geometry.CountPoints(paths)
	mb := geometry.EstimateMegabytes(points)
	level := geometry.ClassifyPayload(mb)
	payload.Stats = &DataStats{
		TotalRows:       snap.Highways.Len(),
		ValidGeometries: len(paths),
		TotalPoints:     points,
		EstimatedMB:     mb,
		PayloadLevel:    level,
	}

	switch level {
	case geometry.PayloadTooBig:
		payload.Notices = append(payload.Notices, Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf(messagePayloadTooLarge, mb, geometry.PayloadCeilingMB),
		})
	case geometry.PayloadLarge:
		payload.Notices = append(payload.Notices, Notice{
			Level:   NoticeWarning,
			Message: fmt.Sprintf(messagePayloadLarge, mb),
		})
	}

	if len(paths) == 0 {
		payload.Notices = append(payload.Notices, Notice{Level: NoticeError, Message: MessageNoGeometries})
		return payload, nil
	}

	sanitized, skipped := table.Sanitize(mapped.Without(warehouse.ColumnGeometry))

	encoding := opts.PathEncoding
	if encoding != PathEncodingPolyline {
		encoding = PathEncodingCoordinates
	}

	traffic, _ := mapped.Column(warehouse.ColumnTraffic)
	rows := sanitized.Rows()
	for i, row := range rows {
		if encoding == PathEncodingPolyline {
			row[PathField] = encodePath(paths[i], opts.Precision)
		} else {
			row[PathField] = paths[i]
		}
		row[TrafficDisplayField] = table.NotAvailable
		if traffic != nil {
			row[TrafficDisplayField] = formatTraffic(traffic.Values[i])
		}
	}

	layer := &PathLayer{
		Type:           "PathLayer",
		Data:           rows,
		PathField:      PathField,
		PathEncoding:   encoding,
		Color:          HighwayColor,
		Width:          highwayWidth,
		WidthMinPixels: widthMinPixels,
		WidthMaxPixels: widthMaxPixels,
		Pickable:       true,
		AutoHighlight:  true,
		HighlightColor: HighlightColor,
	}
	if encoding == PathEncodingPolyline {
		layer.Precision = precisionOrDefault(opts.Precision)
	}
	payload.Layer = layer

	return payload, skipped
}

// TooltipText returns the hover template for highway rows.
func TooltipText(r hours.Range) string {
	return fmt.Sprintf(`Highway: {%s} - {%s} mph speed limit
Segment Length: {%s} miles
Avg Daily Traffic: {%s} vehicles
Date: {%s}
--- Weather Data (%s) ---
Total Precipitation: {%s} in
Precip Minutes: {%s} min
Avg Temperature: {%s}°F
Avg Wind Speed: {%s} mph
Avg Humidity: {%s}%%`,
		warehouse.ColumnSign, warehouse.ColumnSpeed,
		warehouse.ColumnMiles,
		TrafficDisplayField,
		warehouse.ColumnLatestDate,
		r.Text(),
		warehouse.ColumnTotalPrecipitation,
		warehouse.ColumnTotalPrecipMinutes,
		warehouse.ColumnAvgTemperature,
		warehouse.ColumnAvgWindSpeed,
		warehouse.ColumnAvgHumidity,
	)
}

func formatTraffic(v any) string {
	if table.IsMissing(v) {
		return table.NotAvailable
	}
	f, err := table.ToFloat(v)
	if err != nil {
		return table.NotAvailable
	}
	return humanize.Comma(int64(math.Round(f)))
}

func encodePath(p geometry.Path, precision int) string {
	coords := make([]polyline.Coordinate, len(p))
	for i, c := range p {
		coords[i] = polyline.Coordinate{Lat: c.Lat(), Lon: c.Lon()}
	}
	return polyline.Encode(coords, precisionOrDefault(precision))
}

func precisionOrDefault(p int) int {
	if !polyline.ValidPrecision(p) {
		return polyline.DefaultPrecision
	}
	return p
}
