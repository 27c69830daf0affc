package handler

import (
	"net/http"

	"github.com/roadweather/roadweather/internal/api/models"
	"github.com/roadweather/roadweather/internal/api/response"
	"github.com/roadweather/roadweather/internal/hours"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// ListPresets handles GET /v1/metadata/presets - the hour preset buttons.
func (h *MetadataHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets := hours.Presets()
	items := make([]models.Preset, 0, len(presets))
	for _, p := range presets {
		items = append(items, models.Preset{
			ID:       p.ID,
			Label:    p.Label,
			Start:    p.Range.Start,
			End:      p.Range.End,
			HourText: p.Range.Text(),
		})
	}
	response.JSON(w, r, http.StatusOK, models.Presets{Items: items})
}
