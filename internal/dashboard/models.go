// Package dashboard turns the warehouse results for an hour range into the
// payloads the presentation layer renders: summary metrics, the highway map
// layer, weather trend charts, and highway analytics.
package dashboard

import (
	"time"

	"github.com/roadweather/roadweather/internal/geometry"
	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
)

// Metric is a labelled, preformatted value.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// NoticeLevel grades a notice shown next to a payload.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message attached to a payload.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notices shown to users.
const (
	MessageNoHighways      = "No highway data found with the current filters. Try expanding your search criteria."
	MessageNoGeometries    = "No valid highway geometries found for mapping. Check your filters."
	MessageNoWeather       = "No weather data available for %s."
	MessageNoSpeedLimits   = "No speed limit data available"
	messagePayloadLarge    = "Data size (%.1f MB) is getting large. Consider reducing highway count."
	messagePayloadTooLarge = "Data size (%.1f MB) may exceed %dMB limit. Reduce highway count!"
)

// ViewState is the map camera.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
}

// DefaultView centers the map on California.
func DefaultView() ViewState {
	return ViewState{
		Latitude:  36.7783,
		Longitude: -119.4179,
		Zoom:      6,
		Pitch:     0,
	}
}

// Snapshot is the result of one load: the raw query results for a range and
// the decimated path of every highway row.
type Snapshot struct {
	Range        hours.Range
	City         string
	Highways     *table.Table
	Paths        []geometry.Path
	Observations []warehouse.HourlyObservation
	LoadedAt     time.Time
}

// ValidPaths returns how many rows have a non-empty path.
func (s *Snapshot) ValidPaths() int {
	n := 0
	for _, p := range s.Paths {
		if len(p) > 0 {
			n++
		}
	}
	return n
}
